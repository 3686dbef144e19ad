package supabase

import (
	"fmt"
	"strings"

	"adangle-backend/internal/config"
	"github.com/supabase-community/supabase-go"
)

type Client struct {
	Supabase *supabase.Client
	Config   *config.Config
}

func NewClient(cfg *config.Config) (*Client, error) {
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{
		Supabase: client,
		Config:   cfg,
	}, nil
}

// Storage returns an object store that shares the client's storage transport.
func (c *Client) Storage() *StorageClient {
	return &StorageClient{
		client:  c.Supabase.Storage,
		baseURL: strings.TrimRight(c.Config.SupabaseURL, "/"),
	}
}
