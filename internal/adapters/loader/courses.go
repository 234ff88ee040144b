// Package loader reads the course catalog and the carousel catalog from disk.
package loader

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
)

//go:embed sample_courses.yaml
var sampleCourses []byte

// SupportedExtensions returns the catalog file extensions the loader reads.
func SupportedExtensions() []string {
	return []string{".json", ".yaml", ".yml"}
}

// DefaultCourses returns the built-in sample catalog.
func DefaultCourses() []entities.Course {
	courses, err := decodeCourses(sampleCourses, ".yaml")
	if err != nil {
		panic(fmt.Sprintf("loader: embedded sample catalog: %v", err))
	}
	return courses
}

// LoadCourses reads a course catalog. An empty path yields the sample catalog.
func LoadCourses(path string) ([]entities.Course, error) {
	if path == "" {
		return DefaultCourses(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	courses, err := decodeCourses(data, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return courses, nil
}

// decodeCourses parses a JSON or YAML list of courses and normalizes levels,
// so catalogs written with "advanced" or "Beginner" index as expert and beginner.
func decodeCourses(data []byte, ext string) ([]entities.Course, error) {
	var courses []entities.Course
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &courses); err != nil {
			return nil, fmt.Errorf("decoding courses: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &courses); err != nil {
			return nil, fmt.Errorf("decoding courses: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", ext)
	}

	for i := range courses {
		if courses[i].Title == "" {
			return nil, fmt.Errorf("course %d has no title", i+1)
		}
		courses[i].Level = entities.ParseLevel(string(courses[i].Level))
	}
	return courses, nil
}
