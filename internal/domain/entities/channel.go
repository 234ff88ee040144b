package entities

// MessageSubtype is the kind of inbound channel message.
type MessageSubtype string

const (
	SubtypeText        MessageSubtype = "text"
	SubtypeButton      MessageSubtype = "button"
	SubtypeInteractive MessageSubtype = "interactive"
	SubtypeOther       MessageSubtype = "other"
)

// ReplyMetadata routes a reply back through the number that received the message.
type ReplyMetadata struct {
	OriginationNumberID  string `json:"originationNumber"`
	OriginationNumberARN string `json:"originationNumberArn"`
}

// ChannelMessage is the canonical form of one inbound message.
type ChannelMessage struct {
	MessageID     string
	SessionKey    string // Sender address, also the agent session id
	Text          string
	Subtype       MessageSubtype
	ReplyMetadata ReplyMetadata
}

// StructuredReply is the custom payload an agent may answer with.
type StructuredReply struct {
	MessageFormat string `json:"messageFormat"`
	ResponseType  string `json:"responseType"`
	Message       string `json:"message,omitempty"`
}

// IsCarousel reports whether the reply asks for the course catalog carousel.
func (s *StructuredReply) IsCarousel() bool {
	return s != nil && s.MessageFormat == "custom" && s.ResponseType == "carousel"
}

// AgentReply is the accumulated answer of the agent for one message.
type AgentReply struct {
	RawText    string
	Structured *StructuredReply
}

// OutboundType is the kind of reply sent on the channel.
type OutboundType string

const (
	OutboundText     OutboundType = "text"
	OutboundTemplate OutboundType = "template"
)

// OutboundMessage is a rendered channel reply.
type OutboundMessage struct {
	To               string
	Type             OutboundType
	ReplyToMessageID string
	Text             string
	Template         *Template
	ReplyMetadata    ReplyMetadata
}

// Template is a pre-approved multi-card channel template.
type Template struct {
	Name           string
	LanguageCode   string
	BodyParameters []string
	Cards          []Card
}

// Card is one carousel card.
type Card struct {
	Index         int    `yaml:"-"`
	Title         string `yaml:"title"`
	HeaderImageID string `yaml:"header_image_id"`
	ButtonText    string `yaml:"button_text"`
}

// ButtonTextFor is the quick-reply text of a card that asks for courses on title.
func ButtonTextFor(title string) string {
	return "Show me some " + title + " courses"
}

// StatusEvent is an archived delivery or template status update.
type StatusEvent struct {
	ID               string  `json:"message_id"`
	EventDate        string  `json:"event_date"`
	EventTime        string  `json:"event_time"`
	AccountID        string  `json:"aws_account_id,omitempty"`
	Status           string  `json:"status"`
	RecipientID      *string `json:"recipient_id"`
	ConversationID   *string `json:"conversation_id"`
	Billable         bool    `json:"billable"`
	PricingModel     *string `json:"pricing_model"`
	PricingCategory  *string `json:"pricing_category"`
	TemplateName     *string `json:"template_name"`
	TemplateLanguage *string `json:"template_language"`
}
