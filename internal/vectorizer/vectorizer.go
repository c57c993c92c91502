package vectorizer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupported       = errors.New("unsupported vectorizer")
	ErrMissingCredential = errors.New("missing vectorizer credential")
)

// Vectorizer selects how the store turns document text into vectors.
// None is reserved for collections that are never vectorised.
type Vectorizer int

const (
	None Vectorizer = iota
	Transformers
	Ollama
	OpenAI
	Cohere
	HuggingFace
)

// Supported lists the vectorizers a user may select, in display order.
var Supported = []Vectorizer{Transformers, Ollama, OpenAI, Cohere, HuggingFace}

// Credentials holds the third-party API keys a vectorizer may need.
type Credentials struct {
	OpenAIKey      string `yaml:"openai_api_key"`
	CohereKey      string `yaml:"cohere_api_key"`
	HuggingFaceKey string `yaml:"huggingface_api_key"`
}

// Parse maps a configured name ("openai" or "text2vec-openai") to a Vectorizer.
func Parse(name string) (Vectorizer, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "text2vec-")
	for _, v := range Supported {
		if v.String() == n {
			return v, nil
		}
	}
	return None, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupported, name, supportedNames())
}

func supportedNames() string {
	names := make([]string, len(Supported))
	for i, v := range Supported {
		names[i] = v.String()
	}
	return strings.Join(names, ", ")
}

func (v Vectorizer) String() string {
	switch v {
	case None:
		return "none"
	case Transformers:
		return "transformers"
	case Ollama:
		return "ollama"
	case OpenAI:
		return "openai"
	case Cohere:
		return "cohere"
	case HuggingFace:
		return "huggingface"
	}
	return fmt.Sprintf("vectorizer(%d)", int(v))
}

// Module returns the Weaviate module name for the vectorizer.
func (v Vectorizer) Module() string {
	if v == None {
		return "none"
	}
	return "text2vec-" + v.String()
}

// Headers derives the request headers that carry the backend's credential.
// It fails when the backend needs a key that was not provided.
func (v Vectorizer) Headers(c Credentials) (map[string]string, error) {
	switch v {
	case None, Transformers, Ollama:
		return map[string]string{}, nil
	case OpenAI:
		return requireHeader("X-OpenAI-Api-Key", c.OpenAIKey, v)
	case Cohere:
		return requireHeader("X-Cohere-Api-Key", c.CohereKey, v)
	case HuggingFace:
		return requireHeader("X-HuggingFace-Api-Key", c.HuggingFaceKey, v)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, v)
}

func requireHeader(header, key string, v Vectorizer) (map[string]string, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("%w: %s requires an API key", ErrMissingCredential, v)
	}
	return map[string]string{header: key}, nil
}

// MarshalText encodes the vectorizer by name.
func (v Vectorizer) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText accepts any name Parse accepts, plus "none".
func (v *Vectorizer) UnmarshalText(b []byte) error {
	if strings.EqualFold(strings.TrimSpace(string(b)), "none") {
		*v = None
		return nil
	}
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
