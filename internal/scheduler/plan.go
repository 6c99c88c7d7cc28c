package scheduler

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"
)

// ShufflePolicy selects which orderings are randomised before a run
type ShufflePolicy struct {
	// Subjects shuffles subjects within each list
	Subjects bool
	// Lists shuffles the order lists are processed in
	Lists bool
	// All merges every subject into a single shuffled batch and overrides the other two
	All bool
}

// ParseShufflePolicy parses a comma or space separated set of "subjects",
// "lists", "all" or "none"
func ParseShufflePolicy(s string) (ShufflePolicy, error) {
	var p ShufflePolicy
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ',' || r == ' '
	})
	for _, token := range fields {
		switch token {
		case "subjects", "subreddits":
			p.Subjects = true
		case "lists":
			p.Lists = true
		case "all":
			p.All = true
		case "none":
		default:
			return ShufflePolicy{}, fmt.Errorf("unknown shuffle option %q (want subjects, lists, all or none)", token)
		}
	}
	return p, nil
}

// String renders the policy in the form ParseShufflePolicy accepts
func (p ShufflePolicy) String() string {
	if p.All {
		return "all"
	}
	var parts []string
	if p.Subjects {
		parts = append(parts, "subjects")
	}
	if p.Lists {
		parts = append(parts, "lists")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// Layout decides where each subject's files go
type Layout struct {
	BaseDirectory     string
	PerSubjectFolders bool
}

// Destination returns base/<list>/<subject>, or base/<list> without per-subject folders
func (l Layout) Destination(list, subject string) string {
	if l.PerSubjectFolders {
		return filepath.Join(l.BaseDirectory, list, subject)
	}
	return filepath.Join(l.BaseDirectory, list)
}

// Job is one subreddit to download
type Job struct {
	List        string
	Subreddit   string
	Destination string
}

// Batch is the set of jobs drained by one worker pool
type Batch struct {
	Name string
	Jobs []Job
}

// AllBatchName names the merged batch produced by the All policy
const AllBatchName = "all"

// Plan turns lists into batches in processing order. Destinations always
// follow the list a subject came from, even when All merges the lists.
func Plan(lists []*JobList, policy ShufflePolicy, layout Layout, rng *rand.Rand) []Batch {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	if policy.All {
		merged := Batch{Name: AllBatchName}
		for _, list := range lists {
			merged.Jobs = append(merged.Jobs, jobsFor(list, layout)...)
		}
		rng.Shuffle(len(merged.Jobs), func(i, j int) {
			merged.Jobs[i], merged.Jobs[j] = merged.Jobs[j], merged.Jobs[i]
		})
		return []Batch{merged}
	}

	batches := make([]Batch, 0, len(lists))
	for _, list := range lists {
		b := Batch{Name: list.Name, Jobs: jobsFor(list, layout)}
		if policy.Subjects {
			rng.Shuffle(len(b.Jobs), func(i, j int) {
				b.Jobs[i], b.Jobs[j] = b.Jobs[j], b.Jobs[i]
			})
		}
		batches = append(batches, b)
	}

	if policy.Lists {
		rng.Shuffle(len(batches), func(i, j int) {
			batches[i], batches[j] = batches[j], batches[i]
		})
	}
	return batches
}

func jobsFor(list *JobList, layout Layout) []Job {
	jobs := make([]Job, 0, len(list.Subjects))
	for _, subject := range list.Subjects {
		jobs = append(jobs, Job{
			List:        list.Name,
			Subreddit:   subject,
			Destination: layout.Destination(list.Name, subject),
		})
	}
	return jobs
}
