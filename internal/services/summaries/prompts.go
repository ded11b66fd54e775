package summaries

import (
	"fmt"
	"strings"
)

const paragraphSystemPrompt = `You summarize podcast episodes for a daily email digest.

Write exactly one paragraph of plain text. No headings, no bullet points,
no markdown, no preamble. Use only information from the transcript. If a
guest is named, mention them in the first sentence. End with the single
most useful takeaway.`

const longSystemPrompt = `You summarize podcast episodes for a daily email digest.

Produce a structured markdown summary with exactly these sections:

## Overview
Two or three sentences on what the episode covers and why it matters.

## Key Topics
A bullet list of the main topics, one line each, in the order discussed.

## Notable Quotes
One to three short verbatim quotes, each attributed to its speaker.

## Takeaways
A bullet list of three to five concrete takeaways.

Use only information from the transcript. Do not invent quotes.`

const validatorSystemPrompt = `You check podcast transcripts for misrecognized names of people and
companies. Respond with a JSON array, no markdown fences, of objects:
{"wrong": "<text as it appears>", "right": "<corrected form>", "confidence": <0..1>}.
Only propose corrections you are confident about. Respond with [] when
there is nothing to fix.`

func buildParagraphPrompt(podcast, title, guest, transcript string, words int) string {
	var sb strings.Builder
	writeEpisodeHeader(&sb, podcast, title, guest)
	fmt.Fprintf(&sb, "Summarize this episode in one paragraph of about %d words.\n\nTRANSCRIPT:\n%s", words, transcript)
	return sb.String()
}

func buildLongPrompt(podcast, title, guest, transcript string) string {
	var sb strings.Builder
	writeEpisodeHeader(&sb, podcast, title, guest)
	sb.WriteString("Summarize this episode using the required sections.\n\nTRANSCRIPT:\n")
	sb.WriteString(transcript)
	return sb.String()
}

func buildValidatorPrompt(excerpt string) string {
	return "TRANSCRIPT EXCERPT:\n" + excerpt
}

func writeEpisodeHeader(sb *strings.Builder, podcast, title, guest string) {
	fmt.Fprintf(sb, "Podcast: %s\nEpisode: %s\n", podcast, title)
	if guest != "" {
		fmt.Fprintf(sb, "Guest: %s\n", guest)
	}
	sb.WriteString("\n")
}
