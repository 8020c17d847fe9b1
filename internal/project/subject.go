package project

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/poseconv/internal/pose"
)

// Subject identity is parts [subjectFirst, subjectLast) of the filename
// split on subjectDelimiter.
const (
	subjectDelimiter = "_"
	subjectFirst     = 1
	subjectLast      = 5
)

// SubjectID derives the subject identity of an image filename. Filenames
// with fewer than five delimited parts have none.
func SubjectID(filename string) (string, bool) {
	parts := strings.Split(filename, subjectDelimiter)
	if len(parts) < subjectLast {
		return "", false
	}
	return strings.Join(parts[subjectFirst:subjectLast], subjectDelimiter), true
}

// Partition groups rows by subject identity. Partitions are sorted by
// subject; rows keep table order. Rows without an identity, or whose
// filename could escape the partition folder, are returned as conditions.
func Partition(rows []pose.ImageRecord) ([]pose.SubjectPartition, []pose.Condition) {
	bySubject := map[string]*pose.SubjectPartition{}
	var excluded []pose.Condition

	for _, rec := range rows {
		if !isBaseName(rec.Filename) {
			excluded = append(excluded, pose.Condition{
				Code:    pose.CondMissingIdentity,
				Subject: rec.Filename,
				Detail:  "filename is not a plain file name",
			})
			continue
		}
		sid, ok := SubjectID(rec.Filename)
		if !ok {
			excluded = append(excluded, pose.Condition{
				Code:    pose.CondMissingIdentity,
				Subject: rec.Filename,
				Detail:  fmt.Sprintf("fewer than %d %q-delimited parts", subjectLast, subjectDelimiter),
			})
			continue
		}
		p, ok := bySubject[sid]
		if !ok {
			p = &pose.SubjectPartition{Subject: sid}
			bySubject[sid] = p
		}
		rec.Subject = sid
		p.Records = append(p.Records, rec)
	}

	out := make([]pose.SubjectPartition, 0, len(bySubject))
	for _, p := range bySubject {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out, excluded
}

func isBaseName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
