package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"social-backend/internal/storage"
	"strings"
)

var errEmptySeed = errors.New("seed file has no users")

// readSeed decodes a JSON array of users and rejects blank or repeated usernames
func readSeed(r io.Reader) ([]storage.User, error) {
	var users []storage.User
	if err := json.NewDecoder(r).Decode(&users); err != nil {
		return nil, fmt.Errorf("decoding users: %w", err)
	}
	if len(users) == 0 {
		return nil, errEmptySeed
	}

	seen := make(map[string]int, len(users))
	for i, u := range users {
		name := storage.NormalizeUsername(u.Username)
		if name == "" {
			return nil, fmt.Errorf("user #%d has blank username", i+1)
		}
		if j, ok := seen[name]; ok {
			return nil, fmt.Errorf("user #%d repeats username %q of user #%d", i+1, name, j+1)
		}
		seen[name] = i
		users[i].Username = name
		users[i].KnownAs = strings.TrimSpace(u.KnownAs)
	}
	return users, nil
}
