package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fjod/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Products []seedProduct `yaml:"products"`
}

type seedProduct struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Brand        string `yaml:"brand"`
	Category     string `yaml:"category"`
	ImageURL     string `yaml:"image_url"`
	Price        string `yaml:"price"`
	CountInStock int    `yaml:"count_in_stock"`
}

// SeedFromFile loads products from a YAML file. See Seed.
func (s *Service) SeedFromFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return s.Seed(ctx, f)
}

// Seed creates every product in the YAML document whose name is not in the
// catalog yet, and returns how many were created.
func (s *Service) Seed(ctx context.Context, r io.Reader) (int, error) {
	var doc seedFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("parse seed: %w", err)
	}

	created := 0
	for i, sp := range doc.Products {
		_, err := s.repo.FindProductByName(ctx, sp.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrProductNotFound) {
			return created, err
		}

		price, err := decimal.NewFromString(sp.Price)
		if err != nil {
			return created, fmt.Errorf("seed product %d (%q): invalid price %q: %w", i, sp.Name, sp.Price, err)
		}
		in := ProductInput{
			Name:         sp.Name,
			Description:  sp.Description,
			Brand:        sp.Brand,
			Category:     sp.Category,
			ImageURL:     sp.ImageURL,
			Price:        price,
			CountInStock: sp.CountInStock,
		}
		if err := in.validate(); err != nil {
			return created, fmt.Errorf("seed product %d (%q): %w", i, sp.Name, err)
		}

		p := &domain.Product{}
		in.apply(p)
		if err := s.repo.CreateProduct(ctx, p); err != nil {
			return created, err
		}
		created++
	}

	if created > 0 {
		s.log.Info("catalog seeded", zap.Int("created", created))
	}
	return created, nil
}
