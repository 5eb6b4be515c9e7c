// Package seed provides FAQ documents for populating the document index.
package seed

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/cloo-solutions/leadbot/internal/domain"
	"gopkg.in/yaml.v3"
)

// TestQuery is run against the index after seeding to show what it returns.
const TestQuery = "What are your pricing plans?"

//go:embed faqs.yaml
var builtin []byte

type file struct {
	Documents []domain.Document `yaml:"documents"`
}

// Builtin returns the bundled FAQ corpus.
func Builtin() []domain.Document {
	docs, err := parse(builtin)
	if err != nil {
		panic(fmt.Sprintf("seed: bundled faqs.yaml is invalid: %v", err))
	}
	return docs
}

// Load reads documents from a YAML file with a top-level documents list.
func Load(path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes documents from r.
func Read(r io.Reader) ([]domain.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) ([]domain.Document, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if len(f.Documents) == 0 {
		return nil, fmt.Errorf("seed file has no documents")
	}
	for n, d := range f.Documents {
		if err := domain.ValidateDocument(d); err != nil {
			return nil, fmt.Errorf("document %d: %w", n+1, err)
		}
	}
	return f.Documents, nil
}
