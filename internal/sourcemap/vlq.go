package sourcemap

import "strings"

// base64VLQChars is the encoding alphabet shared by every source-map
// consumer (the same table as the standard "source map" v3 spec).
const base64VLQChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

const (
	vlqBaseShift   = 5
	vlqBase        = 1 << vlqBaseShift
	vlqBaseMask    = vlqBase - 1
	vlqContinueBit = vlqBase
)

// encodeVLQ appends n's base64-VLQ encoding to sb (sign in the low bit,
// magnitude shifted left one, continuation bit set on every byte but the
// last).
func encodeVLQ(sb *strings.Builder, n int) {
	v := n << 1
	if n < 0 {
		v = (-n << 1) | 1
	}
	for {
		digit := v & vlqBaseMask
		v >>= vlqBaseShift
		if v > 0 {
			digit |= vlqContinueBit
		}
		sb.WriteByte(base64VLQChars[digit])
		if v == 0 {
			break
		}
	}
}

// encodeMappings renders tokens as the "mappings" field of a standard
// v3 source map: semicolon-separated lines, comma-separated segments,
// each segment's fields delta-encoded against the previous segment on
// the same generated line (column) or against the previous mapped
// segment anywhere in the file (source index/line/column), per the
// source-map v3 spec this package's RawToken model was built to support.
func encodeMappings(tokens []RawToken, lastLine int) string {
	var sb strings.Builder
	line := 0
	genCol := 0
	srcID, srcLine, srcCol := 0, 0, 0
	firstOnLine := true
	for _, tok := range tokens {
		for line < tok.DstLine {
			sb.WriteByte(';')
			line++
			genCol = 0
			firstOnLine = true
		}
		if !firstOnLine {
			sb.WriteByte(',')
		}
		firstOnLine = false

		encodeVLQ(&sb, tok.DstCol-genCol)
		genCol = tok.DstCol
		if tok.SrcID != NilSource {
			encodeVLQ(&sb, tok.SrcID-srcID)
			encodeVLQ(&sb, tok.SrcLine-srcLine)
			encodeVLQ(&sb, tok.SrcCol-srcCol)
			srcID, srcLine, srcCol = tok.SrcID, tok.SrcLine, tok.SrcCol
		}
	}
	for line < lastLine {
		sb.WriteByte(';')
		line++
	}
	return sb.String()
}
