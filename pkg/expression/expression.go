// Package expression maps facial expression scores to emoji.
//
// Detectors report a confidence per expression name; Best picks the
// winning name and Emoji turns it into the character drawn over the face.
package expression

import "sort"

// Known expression names, as reported by every detector backend.
const (
	Angry     = "angry"
	Disgusted = "disgusted"
	Fearful   = "fearful"
	Happy     = "happy"
	Neutral   = "neutral"
	Sad       = "sad"
	Surprised = "surprised"
)

// Scores maps an expression name to a confidence in [0,1].
type Scores map[string]float64

var emoji = map[string]string{
	Angry:     "😠",
	Disgusted: "🤢",
	Fearful:   "😨",
	Happy:     "😀",
	Neutral:   "😑",
	Sad:       "😭",
	Surprised: "😲",
}

// Names returns the known expression names in lexical order.
func Names() []string {
	names := make([]string, 0, len(emoji))
	for name := range emoji {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Map returns a copy of the expression to emoji table.
func Map() map[string]string {
	out := make(map[string]string, len(emoji))
	for k, v := range emoji {
		out[k] = v
	}
	return out
}

// Emoji returns the character for an expression name.
// Names outside the table have no character.
func Emoji(name string) (string, bool) {
	e, ok := emoji[name]
	return e, ok
}

// Best returns the expression with the highest score.
// Ties go to the name that sorts first. ok is false for an empty map.
func Best(scores Scores) (name string, ok bool) {
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !ok || scores[k] > scores[name] {
			name = k
			ok = true
		}
	}
	return name, ok
}

// EmojiFor is Best followed by Emoji.
func EmojiFor(scores Scores) (string, bool) {
	name, ok := Best(scores)
	if !ok {
		return "", false
	}
	return Emoji(name)
}
