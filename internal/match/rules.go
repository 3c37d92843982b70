package match

// RewriteRule is one regex substitution applied by the regex_replace
// strategy. Patterns are matched case-insensitively.
type RewriteRule struct {
	Pattern     string
	Replacement string
}

// DefaultRegexRules is the ordered rewrite table for German administrative
// title decorators. Overlapping and contradictory entries are intentional:
// every rule is applied to every variant produced so far.
var DefaultRegexRules = []RewriteRule{
	{`\ba\.\s*`, "am "},
	{`\bam\b`, "a."},
	{`\ban der\b`, "a.d."},
	{`\bBL\b`, ""},
	{`\bdocumenta-Stadt\b`, ""},
	{`\bEifelkreis\b`, ""},
	{`\bHansestadt\b`, "Kreisfreie Stadt"},
	{`\bim\b`, "i."},
	{`\bin der Oberpfalz\b`, "i. d. Opf"},
	{`\bkreisfreie Stadt\b`, ""},
	{`\bkreisfreie Stadt\b`, "Stadtkreis"},
	{`\bKreis\b`, ""},
	{`\bLandeshauptstadt\b`, ""},
	{`\bLandeshauptstadt\b`, "Stadtkreis"},
	{`\bLandkreis\b`, ""},
	{`\bLandkreis\b`, "(DE)"},
	{`\bSt\.`, "Kreisfreie Stadt"},
	{`\bStadt\b`, "Kreisfreie Stadt"},
	{`\bStadt\b`, "Stadtkreis"},
	{`\bStadt\b`, ""},
	{`\bUniversitätsstadt\b`, "Stadtkreis"},
	{`\bWissenschaftsstadt\b`, ""},
	{`\bWissenschaftsstadt\b`, "Kreisfreie Stadt"},
	{`\bLandeshauptstadt\b`, "Kreisfreie Stadt"},
	{`\bdocumenta-Stadt\b`, "Kreisfreie Stadt"},
	{`\bkr\.f\. St\.`, "Kreisfreie Stadt"},
	{`\bkreisfr\.\s*Stadt\b`, "Kreisfreie Stadt"},
	{`\bSalzlandkreis\b`, "Salzland"},
	{`\bBurgenlandkreis\b`, "Burgenland (D)"},
	{`\bSächs\.`, "Sächsische"},
	{`\bRegionalverband\b`, "Stadtverband"},
	{`\bZwickau\b`, "Zwichau"}, // misspelt in NUTS 2010 level 3
	{`\bStadt der FernUniversität\b`, "Kreisfreie Stadt"},
	{`\bKlingenstadt\b`, "Kreisfreie Stadt"},
	{`\bFreie und Hansestadt\b`, ""},
	{`\bUniversitätsstadt\b`, ""},
	{`(\s)Kreis\b`, "${1}"}, // "Kreis" preceded by whitespace
	{`\bHansestadt\b`, ""},
}

// SuffixTitleWords are appended to input names by the token_permutation
// strategy to build decorated variants.
var SuffixTitleWords = []string{
	"Stadtkreis",
	"Landkreis",
	"Kreisfreie Stadt",
	"DE",
	"D",
	"Eifelkreis",
	"Kreis",
}

// Decorator patterns used by the fuzzy strategy.
var (
	// reference-side titles
	csvDecor = mustPattern(`\b(kreisfreie\s+stadt|stadtkreis|landkreis|kreis)\b`)
	// input-side titles
	excelDecor = mustPattern(`\b(landeshauptstadt|documenta[-\s]?stadt|wissenschaftsstadt|klingenstadt|freie\s+und\s+hansestadt|stadt(?:\s+der\s+fernuniversität)?)\b`)

	kfsPattern       = mustPattern(`\b(kreisfreie\s+stadt|stadtkreis)\b`)
	landkreisPattern = mustPattern(`\b(landkreis|kreis)\b`)
)
