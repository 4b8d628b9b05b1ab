package intent

import (
	"regexp"
	"strings"
)

// rule pairs an intent with the trigger patterns that produce it. Patterns
// run against lowercased text, so they carry no case flags themselves.
type rule struct {
	intent   Intent
	patterns []*regexp.Regexp
}

// rules is the ordered classification table. Order matters: the first
// matching pattern wins, so narrow intents sit above broad ones (e.g.
// "open terminal" is checked before the bare "stop"/"close" triggers).
var rules = []rule{
	{Time, compile(
		`\btime\b`,
		`\bwhat time\b`,
		`\bcurrent time\b`,
		`\bwhat('s| is) the time\b`,
	)},
	{Date, compile(
		`\bdate\b`,
		`\btoday\b`,
		`\bwhat day\b`,
		`\bwhat('s| is) today\b`,
		`\bwhat('s| is) the date\b`,
	)},
	{OpenTerminal, compile(
		`\bopen (terminal|cmd|command prompt|console|shell)\b`,
		`\blaunch (terminal|cmd|console)\b`,
		`\bstart (terminal|cmd|console)\b`,
	)},
	{Screenshot, compile(
		`\b(take|capture|grab) (a )?screenshot\b`,
		`\bscreenshot\b`,
	)},
	{CreateFile, compile(
		`\bcreate (a )?file\b`,
		`\bmake (a )?file\b`,
		`\bnew file\b`,
	)},
	{OpenBrowser, compile(
		`\bopen (browser|chrome|firefox|edge|internet)\b`,
		`\blaunch (browser|chrome|firefox|edge)\b`,
		`\bstart (browser|chrome|firefox|edge)\b`,
	)},
	{PlayMusic, compile(
		`\bplay (some )?music\b`,
		`\bopen music\b`,
		`\blaunch music (player)?\b`,
		`\bplay (songs?|audio)\b`,
	)},
	{VolumeUp, compile(
		`\bvolume up\b`,
		`\bincrease volume\b`,
		`\blouder\b`,
		`\bturn (it )?up\b`,
	)},
	{VolumeDown, compile(
		`\bvolume down\b`,
		`\bdecrease volume\b`,
		`\bquieter\b`,
		`\bturn (it )?down\b`,
	)},
	{Mute, compile(
		`\bmute\b`,
		`\bsilence\b`,
		`\bturn off (the )?sound\b`,
	)},
	{Shutdown, compile(
		`\bshutdown\b`,
		`\bshut down\b`,
		`\bpower off\b`,
		`\bturn off (the )?(computer|pc|system)\b`,
	)},
	{Restart, compile(
		`\brestart\b`,
		`\breboot\b`,
		`\brestart (the )?(computer|pc|system)\b`,
	)},
	{Sleep, compile(
		`\bsleep\b`,
		`\bhibernate\b`,
		`\bput (the )?(computer|pc|system) to sleep\b`,
	)},
	{Calculator, compile(
		`\bopen (calculator|calc)\b`,
		`\blaunch (calculator|calc)\b`,
	)},
	{Notepad, compile(
		`\bopen (notepad|text editor|notes)\b`,
		`\blaunch (notepad|text editor|notes)\b`,
	)},
	{Help, compile(
		`\bhelp\b`,
		`\bwhat can you do\b`,
		`\bcommands\b`,
		`\bwhat (do )?you know\b`,
	)},
	{Stop, compile(
		`\bstop\b`,
		`\bexit\b`,
		`\bquit\b`,
		`\bbye\b`,
		`\bgoodbye\b`,
		`\bclose\b`,
	)},
}

// fileNamePattern extracts the filename argument from phrases like
// "create a file called notes.txt". It runs against the original-cased
// text so the extracted name keeps its capitalisation.
var fileNamePattern = regexp.MustCompile(`(?i)(?:named?|called?|with name)\s+([^\s]+)`)

// DefaultFileName is used when a create_file command names no file.
const DefaultFileName = "new_file.txt"

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// Classify maps recognized speech to an intent. Matching is
// case-insensitive (the text is lowercased first) and first-match-wins in
// table order. Text that matches nothing, including the empty string,
// classifies as [Unknown] with no metadata.
//
// Classify is a pure function and safe for concurrent use.
func Classify(text string) Result {
	trimmed := strings.TrimSpace(text)
	lowered := strings.ToLower(trimmed)
	if lowered == "" {
		return Result{Intent: Unknown}
	}

	for _, r := range rules {
		for _, p := range r.patterns {
			if !p.MatchString(lowered) {
				continue
			}
			res := Result{Intent: r.intent}
			if r.intent == CreateFile {
				res.Meta = map[string]string{"filename": extractFileName(trimmed)}
			}
			return res
		}
	}
	return Result{Intent: Unknown}
}

// extractFileName pulls the filename out of the original-cased text,
// falling back to [DefaultFileName].
func extractFileName(text string) string {
	if m := fileNamePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return DefaultFileName
}
