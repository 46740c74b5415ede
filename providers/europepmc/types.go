package europepmc

import (
	"strconv"
	"time"
)

// SearchResponse ist die Top-Level-Struktur der Europe PMC API-Antwort.
type SearchResponse struct {
	HitCount   int `json:"hitCount"`
	ResultList struct {
		Result []Article `json:"result"`
	} `json:"resultList"`
}

// Article repräsentiert einen einzelnen Artikel in der API-Antwort.
type Article struct {
	ID                   string `json:"id"`
	Source               string `json:"source"`
	PMID                 string `json:"pmid"`
	DOI                  string `json:"doi"`
	Title                string `json:"title"`
	AuthorString         string `json:"authorString"`
	JournalTitle         string `json:"journalTitle"`
	PubYear              string `json:"pubYear"`
	FirstPublicationDate string `json:"firstPublicationDate"`
}

// Hit ist ein gefundener Artikel, reduziert auf die Felder einer Studie.
type Hit struct {
	Title   string
	Authors string
	Year    int
	DOI     string
}

// year liest pubYear und fällt auf das Datum der Erstveröffentlichung zurück.
func (a Article) year() int {
	if y, err := strconv.Atoi(a.PubYear); err == nil {
		return y
	}
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, a.FirstPublicationDate); err == nil {
			return t.Year()
		}
	}
	return 0
}
