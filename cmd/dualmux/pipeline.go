package main

import (
	"context"
	"fmt"

	"github.com/Belphemur/DualMux/internal/cache"
	"github.com/Belphemur/DualMux/internal/client"
	"github.com/Belphemur/DualMux/internal/config"
	"github.com/Belphemur/DualMux/internal/mux"
	"github.com/Belphemur/DualMux/internal/packager"
	"github.com/Belphemur/DualMux/internal/publish"
)

// pipeline wires the components shared by the serve and package commands.
type pipeline struct {
	client    client.Client
	engine    *mux.Engine
	packager  *packager.Packager
	publisher publish.Publisher
}

func newPipeline(ctx context.Context, cfg *config.Config, opts ...packager.Option) (*pipeline, error) {
	cl, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	p := &pipeline{client: cl}
	if err := p.wire(ctx, cfg, opts); err != nil {
		_ = cl.Close()
		return nil, err
	}
	return p, nil
}

// newClient builds the catalog and media caches and the client that owns them.
func newClient(cfg *config.Config) (client.Client, error) {
	var caches client.Caches
	var err error
	if caches.Catalog, err = cache.FromConfig(cfg, cache.GroupCatalog); err != nil {
		return nil, fmt.Errorf("create catalog cache: %w", err)
	}
	if caches.Media, err = cache.FromConfig(cfg, cache.GroupMedia); err != nil {
		_ = caches.Close()
		return nil, fmt.Errorf("create media cache: %w", err)
	}

	cl, err := client.NewClient(cfg, caches)
	if err != nil {
		_ = caches.Close()
		return nil, fmt.Errorf("create client: %w", err)
	}
	return cl, nil
}

func (p *pipeline) wire(ctx context.Context, cfg *config.Config, opts []packager.Option) error {
	var err error
	if p.engine, err = mux.NewEngine(cfg, nil); err != nil {
		return fmt.Errorf("create mux engine: %w", err)
	}
	if p.packager, err = packager.New(cfg, p.client, p.client, p.engine, opts...); err != nil {
		return fmt.Errorf("create packager: %w", err)
	}
	if p.publisher, err = publish.New(ctx, cfg); err != nil {
		return fmt.Errorf("create publisher: %w", err)
	}
	return nil
}

func (p *pipeline) Close() error {
	return p.client.Close()
}
