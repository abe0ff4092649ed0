package features

// ClassCoder resolves a therapeutic class to its stable ordinal code.
// Codes start at 1; unknown classes report (0, false) and encode as zero.
type ClassCoder interface {
	ClassCode(class string) (int, bool)
}
