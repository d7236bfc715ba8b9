package i18n_test

import (
	"testing"

	"github.com/mvrezende/event-pipeline/internal/i18n"
)

func TestCatalogFormatsForExactLocale(t *testing.T) {
	t.Parallel()

	c := i18n.NewCatalog("en")
	c.Add("en", "greeting", "Hello %s")

	if got := c.Lookup("en", "greeting", "Alice"); got != "Hello Alice" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestCatalogMatchesRegionalVariants(t *testing.T) {
	t.Parallel()

	c := i18n.Default("en")

	if got := c.Lookup("pt", "import.error"); got != "A importação não pôde ser concluída" {
		t.Fatalf("expected pt to resolve the pt-BR table, got %q", got)
	}
}

func TestCatalogFallsBackToDefaultLocale(t *testing.T) {
	t.Parallel()

	c := i18n.Default("en")

	if got := c.Lookup("ja-JP", "import.error"); got != "The import could not be completed" {
		t.Fatalf("expected fallback to default locale, got %q", got)
	}
	if got := c.Lookup("not-a-locale!!", "import.error"); got != "The import could not be completed" {
		t.Fatalf("expected unparseable locale to use the default, got %q", got)
	}
}

func TestCatalogReturnsKeyForMissingMessages(t *testing.T) {
	t.Parallel()

	c := i18n.NewCatalog("en")

	if got := c.Lookup("en", "no.such.key"); got != "no.such.key" {
		t.Fatalf("expected key echo for missing message, got %q", got)
	}
}
