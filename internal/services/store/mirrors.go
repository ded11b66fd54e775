package store

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/podforge/digest-api/internal/models"
	"github.com/podforge/digest-api/pkg/titles"
)

// Mirrors writes on-disk copies of transcripts (plain text) and summaries
// (markdown) alongside the database. The database is canonical; mirror
// writes are best-effort and never fail a store operation.
type Mirrors struct {
	transcriptsDir string
	summariesDir   string
}

// NewMirrors creates a mirror writer rooted at baseDir. Files land in
// <base>/transcripts and <base>/summaries; directories are created on
// first write.
func NewMirrors(baseDir string) *Mirrors {
	return &Mirrors{
		transcriptsDir: filepath.Join(baseDir, "transcripts"),
		summariesDir:   filepath.Join(baseDir, "summaries"),
	}
}

func (m *Mirrors) WriteTranscript(key models.EpisodeKey, mode models.Mode, text string) {
	m.write(m.transcriptsDir, mirrorName(key, mode)+".txt", text)
}

func (m *Mirrors) WriteSummary(key models.EpisodeKey, mode models.Mode, paragraph, long string) {
	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(key.Title)
	sb.WriteString("\n\n")
	if paragraph != "" {
		sb.WriteString(paragraph)
		sb.WriteString("\n\n")
	}
	if long != "" {
		sb.WriteString(long)
		sb.WriteString("\n")
	}
	m.write(m.summariesDir, mirrorName(key, mode)+".md", sb.String())
}

func (m *Mirrors) write(dir, name, content string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("[WARN] mirrors: creating %s: %v", dir, err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		log.Printf("[WARN] mirrors: writing %s: %v", name, err)
	}
}

// mirrorName builds a filesystem-safe slug, podcast_date_title, with a
// .test marker keeping test-mode mirrors apart from full-mode ones.
func mirrorName(key models.EpisodeKey, mode models.Mode) string {
	slug := titles.Slug(key.Podcast) + "_" +
		key.Published.UTC().Format("2006-01-02") + "_" +
		titles.Slug(key.Title)
	if mode == models.ModeTest {
		slug += ".test"
	}
	return slug
}
