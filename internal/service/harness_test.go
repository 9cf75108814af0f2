package service

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
	"github.com/Shivendra2129/-PharmaGuard/internal/knowledge"
)

var (
	kbOnce sync.Once
	kbInst *knowledge.KnowledgeBase
	kbErr  error
)

// loadTestKB loads the shipped knowledge base once per test binary. Tests
// run against the production data so the data files are validated too.
func loadTestKB(t *testing.T) *knowledge.KnowledgeBase {
	t.Helper()
	kbOnce.Do(func() {
		kbInst, kbErr = knowledge.Load(domain.KnowledgeConfig{
			RulesPath:      filepath.Join("..", "..", "data", "pharmacogenomic_rules.csv"),
			AllelesPath:    filepath.Join("..", "..", "data", "allele_definitions.csv"),
			ThresholdsPath: filepath.Join("..", "..", "data", "activity_thresholds.csv"),
		}, testLogger())
	})
	require.NoError(t, kbErr)
	return kbInst
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// v builds a variant call for tests.
func v(gene, rsid, genotype string) domain.Variant {
	return domain.Variant{
		RSID:       rsid,
		Chromosome: "1",
		Position:   1000,
		Reference:  "G",
		Alternate:  "A",
		Genotype:   genotype,
		Gene:       gene,
	}
}
