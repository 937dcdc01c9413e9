// Package review holds the human-in-the-loop side of entity resolution.
// Analysis and extraction emit candidates; the policy routes low-confidence
// ones here. Reviewers approve, reject, correct, or link candidates, and the
// gate advances a hearing once no pending candidates remain.
package review
