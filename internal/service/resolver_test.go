package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
)

func TestResolveDiplotypes(t *testing.T) {
	resolver := NewVariantResolver(loadTestKB(t), testLogger())

	tests := []struct {
		name      string
		gene      string
		variants  []domain.Variant
		diplotype string
		cited     []string
	}{
		{
			name:      "homozygous null call fills both slots",
			gene:      "CYP2D6",
			variants:  []domain.Variant{v("CYP2D6", "rs3892097", "1/1")},
			diplotype: "*4/*4",
			cited:     []string{"rs3892097"},
		},
		{
			name:      "lone heterozygous call defaults to reference",
			gene:      "CYP2D6",
			variants:  []domain.Variant{v("CYP2D6", "rs3892097", "0/1")},
			diplotype: "*1/*4",
			cited:     []string{"rs3892097"},
		},
		{
			name: "two heterozygous alleles form a compound diplotype",
			gene: "CYP2D6",
			variants: []domain.Variant{
				v("CYP2D6", "rs3892097", "0/1"),
				v("CYP2D6", "rs1065852", "0/1"),
			},
			diplotype: "*4/*10",
			cited:     []string{"rs1065852", "rs3892097"},
		},
		{
			name:      "hom-ref at defining sites is reference evidence",
			gene:      "CYP2D6",
			variants:  []domain.Variant{v("CYP2D6", "rs3892097", "0/0")},
			diplotype: "*1/*1",
			cited:     []string{"rs3892097"},
		},
		{
			name:      "no informative variants yields Unknown",
			gene:      "CYP2D6",
			variants:  nil,
			diplotype: "Unknown/Unknown",
			cited:     nil,
		},
		{
			name:      "unrelated rsids yield Unknown",
			gene:      "CYP2D6",
			variants:  []domain.Variant{v("CYP2D6", "rs9999999", "1/1")},
			diplotype: "Unknown/Unknown",
			cited:     nil,
		},
		{
			name: "multi-site signature subsumes its components",
			gene: "TPMT",
			variants: []domain.Variant{
				v("TPMT", "rs1800460", "0/1"),
				v("TPMT", "rs1142345", "0/1"),
			},
			diplotype: "*1/*3A",
			cited:     []string{"rs1142345", "rs1800460"},
		},
		{
			name:      "component allele alone still resolves",
			gene:      "TPMT",
			variants:  []domain.Variant{v("TPMT", "rs1142345", "0/1")},
			diplotype: "*1/*3C",
			cited:     []string{"rs1142345"},
		},
		{
			name: "homozygous multi-site signature",
			gene: "TPMT",
			variants: []domain.Variant{
				v("TPMT", "rs1800460", "1/1"),
				v("TPMT", "rs1142345", "1/1"),
			},
			diplotype: "*3A/*3A",
			cited:     []string{"rs1142345", "rs1800460"},
		},
		{
			name: "SLCO1B1 multi-site haplotype outranks single-site",
			gene: "SLCO1B1",
			variants: []domain.Variant{
				v("SLCO1B1", "rs2306283", "0/1"),
				v("SLCO1B1", "rs4149056", "0/1"),
			},
			diplotype: "*1/*15",
			cited:     []string{"rs2306283", "rs4149056"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diplotype, cited := resolver.Resolve(tt.gene, tt.variants)
			assert.Equal(t, tt.diplotype, diplotype.String())

			rsids := make([]string, 0, len(cited))
			for _, c := range cited {
				rsids = append(rsids, c.RSID)
			}
			if tt.cited == nil {
				assert.Empty(t, rsids)
			} else {
				assert.Equal(t, tt.cited, rsids)
			}
		})
	}
}

func TestResolveOrderInsensitive(t *testing.T) {
	resolver := NewVariantResolver(loadTestKB(t), testLogger())

	forward := []domain.Variant{
		v("CYP2D6", "rs3892097", "0/1"),
		v("CYP2D6", "rs1065852", "0/1"),
	}
	reversed := []domain.Variant{forward[1], forward[0]}

	d1, c1 := resolver.Resolve("CYP2D6", forward)
	d2, c2 := resolver.Resolve("CYP2D6", reversed)

	assert.Equal(t, d1.String(), d2.String())
	require.Equal(t, len(c1), len(c2))
	for i := range c1 {
		assert.Equal(t, c1[i].RSID, c2[i].RSID)
	}
}

func TestResolvePhasedGenotypes(t *testing.T) {
	resolver := NewVariantResolver(loadTestKB(t), testLogger())

	phased, _ := resolver.Resolve("CYP2D6", []domain.Variant{v("CYP2D6", "rs3892097", "1|0")})
	unphased, _ := resolver.Resolve("CYP2D6", []domain.Variant{v("CYP2D6", "rs3892097", "0/1")})

	assert.Equal(t, unphased.String(), phased.String())
}

func TestResolveUnknownGene(t *testing.T) {
	resolver := NewVariantResolver(loadTestKB(t), testLogger())

	diplotype, cited := resolver.Resolve("BRCA1", []domain.Variant{v("BRCA1", "rs80357906", "0/1")})
	assert.True(t, diplotype.IsUnknown())
	assert.Empty(t, cited)
}
