// Package seed fills a database with the skills catalogue and, for
// development, fake members trading those skills.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"skillswap/internal/models"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed skills.yml
var builtInCatalogue []byte

// CatalogueSkill is one entry of a skills catalogue file.
type CatalogueSkill struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Icon     string `yaml:"icon"`
}

type catalogueFile struct {
	Skills []CatalogueSkill `yaml:"skills"`
}

// BuiltInCatalogue returns the skills shipped with the application.
func BuiltInCatalogue() ([]CatalogueSkill, error) {
	return ParseCatalogue(bytes.NewReader(builtInCatalogue))
}

// ParseCatalogue reads a YAML catalogue. Every entry needs a name and a
// category, and names must be unique ignoring case.
func ParseCatalogue(r io.Reader) ([]CatalogueSkill, error) {
	var file catalogueFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}

	seen := make(map[string]bool, len(file.Skills))
	for i, s := range file.Skills {
		s.Name = strings.TrimSpace(s.Name)
		s.Category = strings.TrimSpace(s.Category)
		if s.Name == "" || s.Category == "" {
			return nil, fmt.Errorf("catalogue entry %d: name and category are required", i+1)
		}
		key := strings.ToLower(s.Name)
		if seen[key] {
			return nil, fmt.Errorf("catalogue entry %d: duplicate skill %q", i+1, s.Name)
		}
		seen[key] = true
		file.Skills[i] = s
	}
	return file.Skills, nil
}

// Skills inserts catalogue entries that are not already present and
// returns how many rows were created.
func Skills(ctx context.Context, db *gorm.DB, entries []CatalogueSkill) (int, error) {
	created := 0
	for _, entry := range entries {
		skill := models.Skill{Name: entry.Name, Category: entry.Category, Icon: entry.Icon}
		res := db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
			Create(&skill)
		if res.Error != nil {
			return created, fmt.Errorf("seed skill %s: %w", entry.Name, res.Error)
		}
		created += int(res.RowsAffected)
	}
	return created, nil
}
