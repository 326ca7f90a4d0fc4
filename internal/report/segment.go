package report

// Segment is one themed slice of a report, built from one or more chapters
// plus optional supplementary report-level fields.
type Segment struct {
	SegmentID        string   `json:"segment_id"` // "seg1", "seg2", ...
	Theme            string   `json:"theme"`
	Title            string   `json:"title"`
	SourceChapterIDs []string `json:"source_chapter_ids"`
	ContentMarkdown  string   `json:"content_markdown"`
	Tables           []string `json:"tables"`
	WordCount        int      `json:"word_count"`

	// Annotation fields owned by downstream generators, carried here so a
	// segment round-trips through storage without losing caller state.
	PlatformContent map[string]string `json:"platform_content,omitempty"`
	Screenshots     []string          `json:"screenshots,omitempty"`
	VideoPath       string            `json:"video_path,omitempty"`
	VideoStatus     string            `json:"video_status,omitempty"` // pending | generating | processing | ready | failed
	Status          string            `json:"status,omitempty"`       // draft | approved | published | rejected
}
