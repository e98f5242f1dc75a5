package merge

import (
	"fmt"
	"strings"

	"embymerge/internal/services"
)

// Kind classifies the result of one decision cycle.
type Kind string

const (
	KindMerged         Kind = "merged"
	KindSkippedTooMany Kind = "skipped_too_many"
	KindSkippedTooFew  Kind = "skipped_too_few"
	KindError          Kind = "error"
	KindNoIdentity     Kind = "no_identity"
)

// Kinds lists every outcome kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindMerged, KindSkippedTooMany, KindSkippedTooFew, KindError, KindNoIdentity}
}

// Outcome is the recorded result for one group (or one webhook).
type Outcome struct {
	Kind  Kind
	Name  string
	Count int
	Err   error
}

func Merged(name string) Outcome {
	return Outcome{Kind: KindMerged, Name: name, Count: 2}
}

func SkippedTooMany(name string, count int) Outcome {
	return Outcome{Kind: KindSkippedTooMany, Name: name, Count: count}
}

func SkippedTooFew(name string, count int) Outcome {
	return Outcome{Kind: KindSkippedTooFew, Name: name, Count: count}
}

func Failed(name string, err error) Outcome {
	return Outcome{Kind: KindError, Name: name, Err: err}
}

func NoIdentity(name string) Outcome {
	return Outcome{
		Kind: KindNoIdentity,
		Name: name,
		Err:  services.Wrap(services.ErrNoIdentity, PipelineWebhook, "extract identity", "no configured provider in payload", nil),
	}
}

// Message renders the text used for webhook responses and log lines.
func (o Outcome) Message() string {
	name := strings.TrimSpace(o.Name)
	if name == "" {
		name = unknownName
	}
	switch o.Kind {
	case KindMerged:
		return "Merge Successful for movie: " + name
	case KindSkippedTooMany:
		return fmt.Sprintf("No merge performed for %s, more than two movie IDs were found", name)
	case KindSkippedTooFew:
		return fmt.Sprintf("No merge performed for %s, not enough movie IDs were found", name)
	case KindNoIdentity:
		return "No merge performed, no recognized provider id in payload"
	case KindError:
		if o.Err != nil {
			return fmt.Sprintf("Merge Unsuccessful for movie: %s: %v", name, o.Err)
		}
		return "Merge Unsuccessful for movie: " + name
	default:
		return "No merge performed"
	}
}

// IsError reports whether the outcome represents a failure.
func (o Outcome) IsError() bool {
	return o.Kind == KindError
}
