// Package identifier decides which backing store a caller-supplied threat model
// reference addresses. Classification is pure: the result depends only on the raw
// value, the owning project's ID and the configured subject prefixes.
package identifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type Kind int

const (
	// Relational IDs address rows of the threat_models table.
	Relational Kind = iota + 1
	// Ephemeral IDs address AI-generated subjects living in redis.
	Ephemeral
)

func (k Kind) String() string {
	switch k {
	case Relational:
		return "relational"
	case Ephemeral:
		return "ephemeral"
	default:
		return "unknown"
	}
}

// ID is a normalized identifier tagged with the store it belongs to.
type ID struct {
	Value string
	Kind  Kind
}

func (id ID) String() string { return id.Kind.String() + "(" + id.Value + ")" }

var (
	ErrEmpty       = errors.New("identifier is empty")
	ErrUnsupported = errors.New("identifier type is not supported")
)

var DefaultSubjectPrefixes = []string{"subj-", "subject:"}

var integerPattern = regexp.MustCompile(`^-?[0-9]+$`)

type Classifier struct {
	prefixes []string
}

func NewClassifier(subjectPrefixes ...string) *Classifier {
	if len(subjectPrefixes) == 0 {
		subjectPrefixes = DefaultSubjectPrefixes
	}
	return &Classifier{prefixes: subjectPrefixes}
}

// Classify normalizes raw (a string, json.Number or any Go number) for the project projectID.
//
//   - a recognized subject prefix is stripped and the remainder is Ephemeral
//   - a canonical 8-4-4-4-12 UUID is Relational
//   - a number, or a string that is entirely an integer, is Ephemeral when the
//     project ID is a UUID and Relational otherwise; numbers are normalized to
//     integer text and non-integral numbers are ErrUnsupported
//   - any other string is Ephemeral
func (c *Classifier) Classify(raw any, projectID string) (ID, error) {
	switch v := raw.(type) {
	case string:
		return c.classifyString(v, projectID)
	case json.Number:
		return numberID(v, projectID)
	case int:
		return numeric(strconv.Itoa(v), projectID), nil
	case int32:
		return numeric(strconv.FormatInt(int64(v), 10), projectID), nil
	case int64:
		return numeric(strconv.FormatInt(v, 10), projectID), nil
	case uint:
		return numeric(strconv.FormatUint(uint64(v), 10), projectID), nil
	case uint32:
		return numeric(strconv.FormatUint(uint64(v), 10), projectID), nil
	case uint64:
		return numeric(strconv.FormatUint(v, 10), projectID), nil
	case float32:
		return floatID(float64(v), projectID)
	case float64:
		return floatID(v, projectID)
	case nil:
		return ID{}, ErrEmpty
	default:
		return ID{}, fmt.Errorf("%w: %T", ErrUnsupported, raw)
	}
}

func (c *Classifier) classifyString(s string, projectID string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ID{}, ErrEmpty
	}
	for _, p := range c.prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			stripped := strings.TrimPrefix(s, p)
			if stripped == "" {
				return ID{}, ErrEmpty
			}
			return ID{Value: stripped, Kind: Ephemeral}, nil
		}
	}
	if IsUUID(s) {
		return ID{Value: strings.ToLower(s), Kind: Relational}, nil
	}
	if integerPattern.MatchString(s) {
		return numeric(s, projectID), nil
	}
	return ID{Value: s, Kind: Ephemeral}, nil
}

// numberID normalizes JSON number text, so 5, 5.0 and 5e0 are the same id.
func numberID(n json.Number, projectID string) (ID, error) {
	text := strings.TrimSpace(n.String())
	if integerPattern.MatchString(text) {
		return numeric(text, projectID), nil
	}
	f, err := n.Float64()
	if err != nil {
		return ID{}, fmt.Errorf("%w: number %q", ErrUnsupported, text)
	}
	return floatID(f, projectID)
}

// floatID accepts integral values only; fractional ids name nothing in either store.
func floatID(f float64, projectID string) (ID, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return ID{}, fmt.Errorf("%w: non-integral number %v", ErrUnsupported, f)
	}
	return numeric(strconv.FormatFloat(f, 'f', -1, 64), projectID), nil
}

// relational threat model IDs follow the ID style of their project
func numeric(value string, projectID string) ID {
	if IsUUID(projectID) {
		return ID{Value: value, Kind: Ephemeral}
	}
	return ID{Value: value, Kind: Relational}
}

// IsUUID reports whether s is a canonical textual UUID, case-insensitive.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// Partition splits classified IDs into per-store buckets, dropping duplicates
// while keeping first-seen order.
func Partition(ids []ID) (relational []string, ephemeral []string) {
	seen := make(map[ID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		switch id.Kind {
		case Relational:
			relational = append(relational, id.Value)
		case Ephemeral:
			ephemeral = append(ephemeral, id.Value)
		}
	}
	return relational, ephemeral
}
