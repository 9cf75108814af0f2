// Package explain renders clinical explanations for completed risk
// assessments. The assessment itself is frozen before this package sees it;
// an explanation annotates the result and never changes it. When no language
// model endpoint is configured or the call fails, deterministic templates
// authored from CPIC mechanism literature take over.
package explain

import (
	"fmt"
	"strings"

	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
)

const templateConfidence = 0.75

type geneDrug struct {
	gene string
	drug string
}

// mechanismTexts holds clinician-audience mechanism explanations per
// gene/drug pair. Placeholders: diplotype, phenotype description, rsIDs.
var mechanismTexts = map[geneDrug]string{
	{"CYP2D6", "CODEINE"}:        "CYP2D6 encodes a hepatic cytochrome P450 enzyme responsible for converting codeine to morphine (O-demethylation). The %[1]s diplotype results in a %[2]s phenotype. In poor metabolizers, this conversion is virtually absent, making codeine ineffective. In ultrarapid metabolizers, excess morphine accumulates rapidly, causing respiratory depression and opioid toxicity. Variants %[3]s disrupt CYP2D6 enzyme function, altering codeine bioactivation. CPIC recommends avoiding codeine in PM and URM genotypes.",
	{"CYP2C19", "CLOPIDOGREL"}:   "CYP2C19 is the primary enzyme responsible for converting clopidogrel (a prodrug) to its active thiol metabolite that inhibits platelet P2Y12 receptors. The %[1]s diplotype confers %[2]s status. In poor metabolizers, insufficient active metabolite is generated, leading to inadequate platelet inhibition and increased cardiovascular event risk. Variants %[3]s reduce CYP2C19 enzyme activity. CPIC strongly recommends alternative antiplatelet agents (prasugrel or ticagrelor) for PM/IM phenotypes.",
	{"CYP2C9", "WARFARIN"}:       "CYP2C9 metabolizes S-warfarin, the more potent enantiomer of warfarin. The %[1]s genotype produces a %[2]s phenotype with reduced enzyme activity, causing warfarin accumulation and elevated bleeding risk. Reduced clearance of S-warfarin by variants %[3]s means standard doses result in supratherapeutic anticoagulation. CPIC recommends dose reduction proportional to CYP2C9 activity loss and more frequent INR monitoring during dose initiation.",
	{"SLCO1B1", "SIMVASTATIN"}:   "SLCO1B1 encodes OATP1B1, a hepatic uptake transporter essential for moving simvastatin acid into hepatocytes. The %[1]s genotype impairs OATP1B1 function, reducing hepatic uptake and increasing systemic simvastatin plasma concentrations. Elevated muscle exposure leads to statin-associated myopathy (SAM) and rhabdomyolysis risk. Variants %[3]s reduce transporter activity. CPIC recommends lower simvastatin doses or switching to alternative statins with lower OATP1B1 dependence.",
	{"TPMT", "AZATHIOPRINE"}:     "TPMT (thiopurine methyltransferase) inactivates thiopurine drugs by methylation. Azathioprine is converted to 6-mercaptopurine (6-MP) and then to toxic thioguanine nucleotides (TGN). In %[2]s patients with %[1]s, reduced TPMT activity causes TGN accumulation in blood cells, leading to severe hematopoietic toxicity (myelosuppression). Variants %[3]s reduce or abolish TPMT enzyme activity. CPIC mandates a 10-fold dose reduction or alternative immunosuppressant therapy for PM patients.",
	{"DPYD", "FLUOROURACIL"}:     "DPYD (dihydropyrimidine dehydrogenase) is the rate-limiting enzyme in fluorouracil (5-FU) catabolism, responsible for over 80%% of 5-FU clearance. The %[1]s diplotype causes %[2]s status with markedly reduced DPD enzyme activity. Impaired 5-FU catabolism leads to drug accumulation and severe, potentially fatal toxicities including mucositis, neutropenia, and neurotoxicity. Variants %[3]s disrupt DPYD enzyme function. CPIC requires a 50%% dose reduction for heterozygous carriers and contraindication for homozygous DPD-deficient patients.",
}

// TemplateRenderer produces deterministic explanations without any external
// dependency. It is both the offline default and the failure fallback.
type TemplateRenderer struct{}

// NewTemplateRenderer returns a renderer over the built-in mechanism texts.
func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{}
}

// Render produces an explanation for a frozen assessment result.
func (r *TemplateRenderer) Render(result *domain.RiskAssessmentResult) *domain.Explanation {
	rsids := citationRSIDs(result.DetectedVariants)
	rsidsStr := "no specific variants"
	if len(rsids) > 0 {
		rsidsStr = strings.Join(rsids, ", ")
	}
	phDesc := result.Phenotype.Description()

	key := geneDrug{strings.ToUpper(result.Gene), strings.ToUpper(result.Drug)}
	mechanism, ok := mechanismTexts[key]
	if ok {
		mechanism = fmt.Sprintf(mechanism, result.Diplotype.String(), phDesc, rsidsStr)
	} else {
		mechanism = fmt.Sprintf("The %s gene (%s, %s) affects %s pharmacokinetics. Variants %s alter drug metabolism or transport, leading to %s risk. Consult CPIC guidelines for complete clinical recommendations.",
			result.Gene, result.Diplotype.String(), phDesc, result.Drug, rsidsStr, strings.ToLower(string(result.RiskLabel)))
	}

	return &domain.Explanation{
		Summary:              summaryText(result, phDesc),
		Mechanism:            mechanism,
		VariantCitations:     rsids,
		ExplainerConfidence:  templateConfidence,
		GeneratedByTemplates: true,
	}
}

// summaryText builds the patient-facing summary. Wording depends on the risk
// label so that the text never contradicts the frozen assessment.
func summaryText(result *domain.RiskAssessmentResult, phDesc string) string {
	gene := strings.ToUpper(result.Gene)
	drug := strings.ToUpper(result.Drug)
	adverse := result.RiskLabel == domain.RiskToxic || result.RiskLabel == domain.RiskAdjustDosage

	switch (geneDrug{gene, drug}) {
	case geneDrug{"CYP2D6", "CODEINE"}:
		effect := "should be used with dose adjustment"
		switch result.RiskLabel {
		case domain.RiskIneffective:
			effect = "may not work for you"
		case domain.RiskToxic:
			effect = "could cause serious side effects"
		}
		return fmt.Sprintf("Your genetic profile shows a %s status for the CYP2D6 gene, which affects how your body processes codeine. This means the medication %s. Your doctor should be informed of this genetic finding before prescribing codeine.", phDesc, effect)
	case geneDrug{"CYP2C19", "CLOPIDOGREL"}:
		effect := "Standard clopidogrel dosing is appropriate for your genetic profile."
		if adverse || result.RiskLabel == domain.RiskIneffective {
			effect = "This blood thinner may not work properly for you, increasing your risk of heart attack or stroke."
		}
		return fmt.Sprintf("Your genetics show you are a %s for CYP2C19, the gene that activates clopidogrel in your body. %s Please discuss alternative medications with your cardiologist.", phDesc, effect)
	case geneDrug{"CYP2C9", "WARFARIN"}:
		effect := "Standard warfarin dosing is appropriate based on your CYP2C9 genetics alone."
		if adverse {
			effect = "This significantly increases your bleeding risk at standard doses, requiring a dose reduction and closer monitoring."
		}
		return fmt.Sprintf("Your CYP2C9 genetic status as a %s means your body processes warfarin more slowly than average. %s", phDesc, effect)
	case geneDrug{"SLCO1B1", "SIMVASTATIN"}:
		effect := "simvastatin at standard doses is appropriate for your SLCO1B1 genetic profile."
		if adverse {
			effect = "you have an elevated risk of muscle damage (myopathy) with standard simvastatin doses. A lower dose or different statin is recommended."
		}
		return fmt.Sprintf("Your SLCO1B1 gene affects how your liver absorbs simvastatin. As a %s, %s", phDesc, effect)
	case geneDrug{"TPMT", "AZATHIOPRINE"}:
		effect := "Standard azathioprine dosing is appropriate based on your TPMT genetics."
		if adverse {
			effect = "This creates a high risk of serious blood toxicity. Significantly reduced doses or a different medication is essential."
		}
		return fmt.Sprintf("Your TPMT genetic profile indicates you are a %s, meaning your body processes azathioprine differently. %s", phDesc, effect)
	case geneDrug{"DPYD", "FLUOROURACIL"}:
		effect := "Standard fluorouracil dosing appears appropriate based on your DPYD genetics."
		if adverse {
			effect = "This puts you at serious risk of life-threatening side effects and requires dose reduction or use of an alternative chemotherapy."
		}
		return fmt.Sprintf("Your DPYD gene status as a %s means you cannot break down fluorouracil (5-FU) as quickly as most people. %s", phDesc, effect)
	}

	return fmt.Sprintf("Your %s genetic profile (%s) affects how your body processes %s, resulting in %s risk. Please consult your healthcare provider about appropriate medication management.",
		result.Gene, phDesc, result.Drug, strings.ToLower(string(result.RiskLabel)))
}

// citationRSIDs collects the rsIDs worth citing, in detection order.
func citationRSIDs(variants []domain.DetectedVariant) []string {
	rsids := make([]string, 0, len(variants))
	for _, v := range variants {
		if v.RSID != "" {
			rsids = append(rsids, v.RSID)
		}
	}
	return rsids
}
