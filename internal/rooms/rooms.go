// Package rooms derives canonical room keys for the two addressing schemes:
// project group channels and pairwise direct-message channels.
package rooms

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	projectPrefix = "project-"
	directPrefix  = "dm-"
)

// ForProject returns the room key of a project group channel.
func ForProject(projectID int) string {
	return fmt.Sprintf("%s%d", projectPrefix, projectID)
}

// ForPair returns the room key of the direct-message channel between two
// users. The key is symmetric: ForPair(a, b) == ForPair(b, a).
func ForPair(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%s%d-%d", directPrefix, a, b)
}

// IsDirect reports whether key addresses a pairwise direct-message room.
func IsDirect(key string) bool {
	return strings.HasPrefix(key, directPrefix)
}

// IsProject reports whether key addresses a project group channel.
func IsProject(key string) bool {
	return strings.HasPrefix(key, projectPrefix)
}

// PairUsers extracts the two participant ids from a direct-message room key.
func PairUsers(key string) (int, int, error) {
	if !IsDirect(key) {
		return 0, 0, fmt.Errorf("not a direct room key: %s", key)
	}
	parts := strings.Split(strings.TrimPrefix(key, directPrefix), "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed direct room key: %s", key)
	}
	a, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed direct room key: %s", key)
	}
	b, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed direct room key: %s", key)
	}
	return a, b, nil
}

// PairPeer returns the other participant of a direct room relative to userID.
func PairPeer(key string, userID int) (int, error) {
	a, b, err := PairUsers(key)
	if err != nil {
		return 0, err
	}
	if a == userID {
		return b, nil
	}
	if b == userID {
		return a, nil
	}
	return 0, fmt.Errorf("user %d is not part of room %s", userID, key)
}
