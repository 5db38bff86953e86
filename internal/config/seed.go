package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/MosinFAM/graphql-channels/internal/models"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Channels []struct {
		Name  string   `yaml:"name"`
		Posts []string `yaml:"posts"`
	} `yaml:"channels"`
}

// DefaultSeed - каналы, с которыми сервер стартует без SEED_FILE
func DefaultSeed(now time.Time) []models.Channel {
	general := models.NewChannel("general")
	general.Posts = append(general.Posts, models.NewPost("general", "hello world", now))

	cats := models.NewChannel("cats")
	cats.Posts = append(cats.Posts,
		models.NewPost("cats", "meow world", now),
		models.NewPost("cats", "hiss", now),
	)
	return []models.Channel{general, cats}
}

// LoadSeed читает YAML-файл с каналами. Пустой путь - DefaultSeed.
func LoadSeed(path string, now time.Time) ([]models.Channel, error) {
	if path == "" {
		return DefaultSeed(now), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data, now)
}

func ParseSeed(data []byte, now time.Time) ([]models.Channel, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	seen := make(map[string]bool, len(file.Channels))
	channels := make([]models.Channel, 0, len(file.Channels))
	for _, c := range file.Channels {
		if c.Name == "" {
			return nil, errors.New("seed channel without name")
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("seed channel %q is duplicated", c.Name)
		}
		seen[c.Name] = true

		channel := models.NewChannel(c.Name)
		for _, message := range c.Posts {
			channel.Posts = append(channel.Posts, models.NewPost(c.Name, message, now))
		}
		channels = append(channels, channel)
	}
	return channels, nil
}
