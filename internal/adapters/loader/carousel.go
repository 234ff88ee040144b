package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
	"github.com/0xcro3dile/coursebridge/internal/domain/ports"
)

type carouselFile struct {
	Cards []entities.Card `yaml:"cards"`
}

// CarouselCatalog implements ports.CarouselCatalog from a YAML file.
// Readers see an immutable snapshot; Reload swaps it atomically.
type CarouselCatalog struct {
	path  string
	cards atomic.Pointer[[]entities.Card]
	log   logrus.FieldLogger
}

// NewCarouselCatalog loads path. A missing file leaves the catalog empty,
// which makes the renderer use its built-in cards.
func NewCarouselCatalog(path string, log logrus.FieldLogger) (*CarouselCatalog, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &CarouselCatalog{path: path, log: log.WithField("component", "carousel")}
	empty := []entities.Card{}
	c.cards.Store(&empty)

	if path == "" {
		return c, nil
	}
	if err := c.Reload(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return c, nil
}

// Cards returns the current snapshot. Callers must not modify it.
func (c *CarouselCatalog) Cards() []entities.Card {
	return *c.cards.Load()
}

// Reload re-reads the catalog file. On error the previous snapshot is kept.
func (c *CarouselCatalog) Reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}

	var file carouselFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("decoding carousel catalog: %w", err)
	}
	for i := range file.Cards {
		card := &file.Cards[i]
		if card.Title == "" || card.HeaderImageID == "" {
			return fmt.Errorf("carousel card %d needs title and header_image_id", i+1)
		}
		if card.ButtonText == "" {
			card.ButtonText = entities.ButtonTextFor(card.Title)
		}
	}

	c.cards.Store(&file.Cards)
	c.log.WithField("cards", len(file.Cards)).Info("Carousel catalog loaded")
	return nil
}

// Watch reloads the catalog whenever its file changes, until ctx is done.
func (c *CarouselCatalog) Watch(ctx context.Context, watcher ports.FileWatcher) error {
	if c.path == "" {
		return nil
	}
	target, err := filepath.Abs(c.path)
	if err != nil {
		return err
	}

	events, err := watcher.Watch(ctx, filepath.Dir(target))
	if err != nil {
		return fmt.Errorf("watching carousel catalog: %w", err)
	}

	go func() {
		for ev := range events {
			if abs, _ := filepath.Abs(ev.Path); abs != target {
				continue
			}
			switch ev.Operation {
			case ports.FileCreated, ports.FileModified:
				if err := c.Reload(); err != nil {
					c.log.WithError(err).Warn("Keeping previous carousel catalog")
				}
			case ports.FileDeleted:
				c.log.Warn("Carousel catalog file removed; keeping previous cards")
			}
		}
	}()
	return nil
}
