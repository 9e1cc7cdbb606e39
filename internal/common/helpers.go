// Package common provides general utility helper functions and types
package common

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"
)

// TimeTrack tracks execution time of each function.
func TimeTrack(start time.Time, name string, logger *slog.Logger) {
	elapsed := time.Since(start)
	logger.Debug(name, "elapsed_time", elapsed)
}

// GetUUIDFromString returns a UUID5 for given slice of strings.
func GetUUIDFromString(stringSlice []string) (string, error) {
	s := strings.Join(stringSlice, ",")
	h := xxh3.HashString128(s).Bytes()
	uuid, err := uuid.FromBytes(h[:])

	return uuid.String(), err
}

// MakeConfig reads config file, merges with passed default config and returns updated
// config instance.
func MakeConfig[T any](filePath string) (*T, error) {
	// Create a new pointer to config instance
	config := new(T)

	// If no config file path provided, return default config
	if filePath == "" {
		return config, errors.New("config file path missing")
	}

	// Read config file
	configFile, err := os.ReadFile(filePath)
	if err != nil {
		return config, err
	}

	err = yaml.Unmarshal(configFile, config)
	if err != nil {
		return config, err
	}

	return config, nil
}

// StripQuotes removes surrounding single or double quotes and spaces.
func StripQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}

// SplitList splits a comma separated list. Items are stripped of quotes and
// empty items are dropped.
func SplitList(s string) []string {
	var items []string

	for _, item := range strings.Split(StripQuotes(s), ",") {
		if item = StripQuotes(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}
