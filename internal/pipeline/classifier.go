// Package pipeline implements the fetch-filter-classify-store cycle.
package pipeline

import (
	"sort"
	"strings"

	"github.com/researchfeed/paper-feed-service/internal/domain"
)

// domainDef binds a domain tag to the phrases that signal it.
type domainDef struct {
	tag     domain.DomainTag
	phrases []string
}

// classifierDefs is the static phrase table driving classification.
// Phrases are matched as lowercase substrings; the first hit settles a tag.
var classifierDefs = []domainDef{
	{
		tag: domain.DomainArtificialIntelligence,
		phrases: []string{
			"artificial intelligence",
			"machine learning",
			"deep learning",
			"neural network",
			"reinforcement learning",
			"generative model",
		},
	},
	{
		tag: domain.DomainComputerVision,
		phrases: []string{
			"computer vision",
			"image recognition",
			"object detection",
			"image segmentation",
			"pose estimation",
			"optical character recognition",
		},
	},
	{
		tag: domain.DomainNaturalLanguageProcessing,
		phrases: []string{
			"natural language processing",
			"language model",
			"machine translation",
			"text classification",
			"sentiment analysis",
			"named entity recognition",
			"speech recognition",
		},
	},
	{
		tag: domain.DomainDataScience,
		phrases: []string{
			"data science",
			"data mining",
			"big data",
			"predictive analytics",
			"data visualization",
			"time series forecasting",
		},
	},
	{
		tag: domain.DomainCybersecurity,
		phrases: []string{
			"cybersecurity",
			"cyber security",
			"information security",
			"network security",
			"intrusion detection",
			"malware",
			"cryptography",
			"vulnerability analysis",
		},
	},
	{
		tag: domain.DomainDistributedSystems,
		phrases: []string{
			"distributed system",
			"distributed computing",
			"cloud computing",
			"edge computing",
			"microservice",
			"consensus protocol",
			"fault tolerance",
		},
	},
	{
		tag: domain.DomainQuantumComputing,
		phrases: []string{
			"quantum computing",
			"quantum algorithm",
			"quantum error correction",
			"quantum circuit",
			"qubit",
		},
	},
	{
		tag: domain.DomainSoftwareEngineering,
		phrases: []string{
			"software engineering",
			"software testing",
			"software architecture",
			"program analysis",
			"code review",
			"formal verification",
			"requirements engineering",
		},
	},
}

// Classify returns the domain tags matching a record's title, abstract and
// keywords. Matching is case-insensitive substring search over one combined
// haystack. A record may carry multiple tags; an empty result means the
// record is out of scope. The returned tags are sorted.
func Classify(title, abstract string, keywords []string) []domain.DomainTag {
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteByte(' ')
	sb.WriteString(abstract)
	for _, kw := range keywords {
		sb.WriteByte(' ')
		sb.WriteString(kw)
	}
	haystack := strings.ToLower(sb.String())

	var tags []domain.DomainTag
	for _, def := range classifierDefs {
		for _, phrase := range def.phrases {
			if strings.Contains(haystack, phrase) {
				tags = append(tags, def.tag)
				break
			}
		}
	}

	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}
