package models

import "time"

// Section keys every ArticleRecord carries, present even when empty.
const (
	SectionTop                 = "top"
	SectionPreparedRemarks     = "prepared_remarks"
	SectionQuestionsAndAnswers = "questions_and_answers"
	SectionCallParticipants    = "call_participants"
)

// ExpectedSections lists the guaranteed section keys in column order.
var ExpectedSections = []string{
	SectionTop,
	SectionPreparedRemarks,
	SectionQuestionsAndAnswers,
	SectionCallParticipants,
}

type ListingRecord struct {
	URL             string `bson:"url"`
	Title           string `bson:"title"`
	Author          string `bson:"author"`
	TranscribedDate string `bson:"transcribed_date"`
	Description     string `bson:"description"`
}

type ArticleRecord struct {
	URL      string            `bson:"url"`
	Name     string            `bson:"name"`
	Ticker   string            `bson:"ticker"`
	Date     *string           `bson:"date"`
	Sections map[string]string `bson:"sections"`
}

// EmptyArticle is the degraded record used when an article cannot be
// fetched or parsed.
func EmptyArticle(url string) ArticleRecord {
	sections := make(map[string]string, len(ExpectedSections))
	for _, k := range ExpectedSections {
		sections[k] = ""
	}
	return ArticleRecord{URL: url, Sections: sections}
}

// ExtraSections returns the heading-derived keys beyond the expected four.
func (a ArticleRecord) ExtraSections() map[string]string {
	extra := make(map[string]string)
	for k, v := range a.Sections {
		if !isExpected(k) {
			extra[k] = v
		}
	}
	return extra
}

func isExpected(key string) bool {
	for _, k := range ExpectedSections {
		if k == key {
			return true
		}
	}
	return false
}

type StopReason string

const (
	StopCutoffReached    StopReason = "cutoff_reached"
	StopCaughtUp         StopReason = "caught_up"
	StopListingExhausted StopReason = "listing_exhausted"
	StopPageLimit        StopReason = "page_limit"
)

type WalkResult struct {
	Records        []ListingRecord
	Pages          int
	Reason         StopReason
	SkippedAnchors int
	UndatedRecords int
}

type RunReport struct {
	RunID            string
	Reason           StopReason
	Pages            int
	ListingsAppended int
	ArticlesAppended int
	ArticlesDegraded int
	SkippedAnchors   int
	Duration         time.Duration
}
