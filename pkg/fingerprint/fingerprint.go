// Package fingerprint hashes roster content so a stored assignment can be
// checked for staleness against the live roster.
package fingerprint

import (
	"sort"
	"strconv"

	"github.com/arnavshah/secret-santa-api/pkg/models"
	"github.com/cespare/xxhash/v2"
)

// Field separators that cannot collide with the length-prefixed values
const (
	fieldSep       = 0x1f
	participantSep = 0x1e
)

// Compute returns a stable hex digest over participant ids, names, emails and
// rules. Participant order and rule order do not affect the result. Hints are
// left out since links read them from the live roster.
func Compute(participants []models.Participant) string {
	sorted := make([]models.Participant, len(participants))
	copy(sorted, participants)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	d := xxhash.New()
	for _, p := range sorted {
		writeField(d, p.ID)
		writeField(d, p.Name)
		writeField(d, p.Email)

		ruleKeys := make([]string, 0, len(p.Rules))
		for _, r := range p.Rules {
			ruleKeys = append(ruleKeys, string(r.Kind)+":"+r.TargetID)
		}
		sort.Strings(ruleKeys)
		for i, k := range ruleKeys {
			// a repeated rule means the same as a single one
			if i > 0 && ruleKeys[i-1] == k {
				continue
			}
			writeField(d, k)
		}
		d.Write([]byte{participantSep})
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

// Stale reports whether a stored fingerprint no longer matches the roster
func Stale(stored string, participants []models.Participant) bool {
	return stored != Compute(participants)
}

func writeField(d *xxhash.Digest, s string) {
	d.WriteString(strconv.Itoa(len(s)))
	d.Write([]byte{fieldSep})
	d.WriteString(s)
}
