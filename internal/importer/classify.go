package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"slices"
	"strings"

	"github.com/certprep/certprep-backend/internal/model"
)

const general = "general"

// ContentHash identifies a question by its normalized text and option texts,
// independent of option order.
func ContentHash(text string, options []string) string {
	normalized := make([]string, len(options))
	for i, o := range options {
		normalized[i] = strings.ToLower(strings.TrimSpace(o))
	}
	slices.Sort(normalized)

	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text)) + strings.Join(normalized, "|")))
	return hex.EncodeToString(sum[:])
}

// ─── Provider ───────────────────────────────────────────────────────────

type keywordRule struct {
	value    string
	keywords []string
}

var providerFileRules = []keywordRule{
	{"gcp", []string{"google cloud", "gcp"}},
	{"aws", []string{"aws", "amazon"}},
	{"azure", []string{"azure", "microsoft"}},
	{"oracle", []string{"oracle", "oci"}},
	{"salesforce", []string{"salesforce"}},
}

var providerTextRules = []patternRule{
	{"ml", regexp.MustCompile(`(?i)tensorflow|neural|machine learning`)},
	{"aws", regexp.MustCompile(`(?i)\baws\b|amazon|\bec2\b|\bs3\b|dynamodb|\blambda\b`)},
	{"gcp", regexp.MustCompile(`(?i)google cloud|\bgcp\b|\bgke\b|bigquery|data studio`)},
	{"azure", regexp.MustCompile(`(?i)azure|microsoft`)},
	{"devops", regexp.MustCompile(`(?i)kubernetes|docker|container`)},
}

// Provider guesses the vendor, trusting the file name over the question text.
func Provider(text, fileName string) string {
	if v := matchKeywords(providerFileRules, normalizeFileName(fileName)); v != "" {
		return v
	}
	if v := matchPattern(providerTextRules, text); v != "" {
		return v
	}
	return general
}

// matchKeywords matches whole space-separated phrases only, so "oci" does
// not hit "associate".
func matchKeywords(rules []keywordRule, s string) string {
	padded := " " + strings.Join(strings.Fields(s), " ") + " "
	for _, r := range rules {
		for _, k := range r.keywords {
			if strings.Contains(padded, " "+k+" ") {
				return r.value
			}
		}
	}
	return ""
}

// ─── Certification ──────────────────────────────────────────────────────

var certificationFileRules = []keywordRule{
	{"pde", []string{"professional data engineer"}},
	{"pca", []string{"professional cloud architect"}},
	{"ace", []string{"associate cloud engineer"}},
	{"pcd", []string{"professional cloud developer"}},
	{"pcse", []string{"professional cloud security engineer"}},
	{"pcne", []string{"professional cloud network engineer"}},
	{"pcde", []string{"professional cloud devops engineer"}},
	{"pmle", []string{"professional machine learning engineer"}},
	{"saa-c03", []string{"solutions architect associate", "saa c03"}},
	{"sap-c02", []string{"solutions architect professional", "sap c02"}},
	{"dva-c02", []string{"developer associate", "dva c02"}},
	{"soa-c02", []string{"sysops administrator", "soa c02"}},
	{"dop-c02", []string{"devops engineer professional", "dop c02"}},
	{"scs-c02", []string{"security specialty", "scs c02"}},
	{"mls-c01", []string{"machine learning specialty", "mls c01"}},
	{"das-c01", []string{"data analytics specialty"}},
	{"dbs-c01", []string{"database specialty"}},
	{"ans-c01", []string{"advanced networking specialty"}},
	{"az-900", []string{"azure fundamentals", "az 900"}},
	{"az-104", []string{"azure administrator", "az 104"}},
	{"az-204", []string{"azure developer", "az 204"}},
	{"az-305", []string{"azure solutions architect expert", "az 305"}},
	{"az-400", []string{"azure devops engineer expert", "az 400"}},
	{"az-500", []string{"azure security engineer", "az 500"}},
	{"dp-203", []string{"azure data engineer", "dp 203"}},
	{"dp-100", []string{"azure data scientist", "dp 100"}},
	{"ai-102", []string{"azure ai engineer", "ai 102"}},
	{"ckad", []string{"certified kubernetes application developer", "ckad"}},
	{"cks", []string{"certified kubernetes security specialist", "cks"}},
	{"cka", []string{"certified kubernetes administrator", "cka"}},
}

type patternRule struct {
	value   string
	pattern *regexp.Regexp
}

var certificationTextRules = []patternRule{
	{"saa-c03", regexp.MustCompile(`(?i)solutions architect associate|\bsaa.c03\b`)},
	{"dva-c02", regexp.MustCompile(`(?i)developer associate|\bdva.c0[12]\b`)},
	{"soa-c02", regexp.MustCompile(`(?i)sysops administrator|\bsoa.c02\b`)},
	{"pde", regexp.MustCompile(`(?i)professional data engineer|bigquery|dataflow|pub/sub`)},
	{"pca", regexp.MustCompile(`(?i)professional cloud architect|gcp architect`)},
	{"ace", regexp.MustCompile(`(?i)associate cloud engineer`)},
	{"az-900", regexp.MustCompile(`(?i)azure fundamentals|\baz.900\b`)},
	{"az-104", regexp.MustCompile(`(?i)azure administrator|\baz.104\b`)},
	{"az-204", regexp.MustCompile(`(?i)azure developer|\baz.204\b`)},
	{"ckad", regexp.MustCompile(`(?i)certified kubernetes application developer|\bckad\b`)},
	{"cka", regexp.MustCompile(`(?i)certified kubernetes administrator|\bcka\b`)},
	{"ml-specialty", regexp.MustCompile(`(?i)machine learning|tensorflow|neural.network`)},
}

// Certification guesses the certification code, trusting the file name over
// the question text.
func Certification(text, fileName string) string {
	if v := matchKeywords(certificationFileRules, normalizeFileName(fileName)); v != "" {
		return v
	}
	if v := matchPattern(certificationTextRules, text); v != "" {
		return v
	}
	return general
}

func matchPattern(rules []patternRule, s string) string {
	for _, r := range rules {
		if r.pattern.MatchString(s) {
			return r.value
		}
	}
	return ""
}

// ─── Category ───────────────────────────────────────────────────────────

var categoryRules = []patternRule{
	{"Data Processing", regexp.MustCompile(`(?i)bigquery|dataflow|dataproc|apache beam|spark|hadoop|\betl\b|batch processing|stream processing`)},
	{"Data Storage", regexp.MustCompile(`(?i)cloud storage|bigtable|firestore|cloud sql|spanner|data lake|warehouse`)},
	{"Data Pipeline", regexp.MustCompile(`(?i)pub/sub|cloud composer|airflow|pipeline|orchestration|workflow`)},
	{"Machine Learning", regexp.MustCompile(`(?i)tensorflow|ai platform|automl|vertex ai|\bml\b|neural.network|training|prediction`)},
	{"Analytics & BI", regexp.MustCompile(`(?i)data studio|looker|analytics|reporting|visualization|dashboard|\bbi\b`)},
	{"Database", regexp.MustCompile(`(?i)database|\bsql\b|nosql|mysql|postgresql|dynamodb|\brds\b`)},
	{"Compute", regexp.MustCompile(`(?i)compute engine|\bec2\b|\bgke\b|kubernetes|app engine|cloud functions|cloud run|containers?\b`)},
	{"Security & Identity", regexp.MustCompile(`(?i)\biam\b|security|encryption|\bkms\b|service account|authentication|authorization`)},
	{"Networking", regexp.MustCompile(`(?i)\bvpc\b|network|subnet|firewall|load balancer|\bdns\b|\bcdn\b|interconnect`)},
	{"Monitoring & Operations", regexp.MustCompile(`(?i)stackdriver|cloudwatch|monitoring|logging|alerting|debugging|profiler`)},
	{"Storage", regexp.MustCompile(`(?i)\bs3\b|persistent disk|filestore|archive|backup`)},
	{"Serverless", regexp.MustCompile(`(?i)\blambda\b|serverless|event driven`)},
	{"DevOps & CI/CD", regexp.MustCompile(`(?i)cloud build|container registry|deployment|ci/cd|source repositories`)},
	{"Data Migration", regexp.MustCompile(`(?i)database migration service|\btransfer\b|migration`)},
	{"Cost Optimization", regexp.MustCompile(`(?i)billing|\bcost\b|pricing|budget|resource management`)},
}

// Category returns the first topical bucket the question text matches.
func Category(text string) string {
	if v := matchPattern(categoryRules, text); v != "" {
		return v
	}
	return "General"
}

// ─── Difficulty ─────────────────────────────────────────────────────────

var (
	hardMarkers = []string{"advanced", "complex", "optimize", "troubleshoot"}
	easyMarkers = []string{"basic", "simple", "what is", "which of"}
)

// Difficulty estimates difficulty from wording, length and option count.
func Difficulty(text string, optionCount int) model.Difficulty {
	lower := strings.ToLower(text)
	if containsAny(lower, hardMarkers) || optionCount > 6 || len(text) > 500 {
		return model.DifficultyHard
	}
	if containsAny(lower, easyMarkers) || len(text) < 150 {
		return model.DifficultyEasy
	}
	return model.DifficultyMedium
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ─── Tags ───────────────────────────────────────────────────────────────

var tagRules = []patternRule{
	{"tensorflow", regexp.MustCompile(`(?i)tensorflow`)},
	{"neural-networks", regexp.MustCompile(`(?i)neural.network`)},
	{"overfitting", regexp.MustCompile(`(?i)overfit`)},
	{"regularization", regexp.MustCompile(`(?i)dropout|regularization`)},
	{"machine-learning", regexp.MustCompile(`(?i)machine.learning|\bml\b`)},
	{"aws-ec2", regexp.MustCompile(`(?i)\bec2\b|elastic.compute`)},
	{"aws-s3", regexp.MustCompile(`(?i)\bs3\b|simple.storage`)},
	{"aws-lambda", regexp.MustCompile(`(?i)\blambda\b|serverless`)},
	{"kubernetes", regexp.MustCompile(`(?i)kubernetes|\bk8s\b`)},
	{"docker", regexp.MustCompile(`(?i)docker|container`)},
	{"security", regexp.MustCompile(`(?i)security|encryption|\bauth`)},
	{"networking", regexp.MustCompile(`(?i)network|\bvpc\b|subnet`)},
	{"database", regexp.MustCompile(`(?i)database|\bsql\b|nosql`)},
	{"monitoring", regexp.MustCompile(`(?i)monitoring|logging|metrics`)},
	{"performance", regexp.MustCompile(`(?i)performance|optimization|scaling`)},
}

// Tags lists every topical tag the question text matches.
func Tags(text string) []string {
	tags := []string{}
	for _, r := range tagRules {
		if r.pattern.MatchString(text) {
			tags = append(tags, r.value)
		}
	}
	return tags
}

// ─── Answer key ─────────────────────────────────────────────────────────

var explanationLetter = regexp.MustCompile(`\b([A-Z])\.`)

// correctAnswers recovers the answer key in order of preference: explicit
// indices, flagged options, then "A."-style letters in the explanation.
// Indices outside the option list are dropped.
func correctAnswers(q *rawQuestion) []int {
	n := len(q.Options)
	var found []int
	add := func(i int) {
		if i >= 0 && i < n && !slices.Contains(found, i) {
			found = append(found, i)
		}
	}

	if q.CorrectAnswer != nil {
		add(*q.CorrectAnswer)
	}
	for _, i := range q.CorrectAnswers {
		add(i)
	}

	if len(found) == 0 {
		for i, o := range q.Options {
			if o.Correct {
				add(i)
			}
		}
	}

	if len(found) == 0 {
		for _, m := range explanationLetter.FindAllStringSubmatch(q.Explanation, -1) {
			add(int(m[1][0] - 'A'))
		}
	}

	slices.Sort(found)
	return found
}

// normalizeFileName lowercases a file stem and turns separators into spaces
// so "aws-solutions-architect-associate" matches the phrase rules.
func normalizeFileName(name string) string {
	r := strings.NewReplacer("-", " ", "_", " ", ".", " ")
	return strings.ToLower(r.Replace(name))
}
