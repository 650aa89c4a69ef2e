// Package model defines the core entities of the attempt execution domain:
// projects, tasks, attempts, sessions, execution processes, log entries,
// normalized entries, queued messages, approvals, and diff snapshots.
package model

// Repo is a single git repository tracked by a Project: a stable id paired
// with its absolute local path and default branch.
type Repo struct {
	ID            string
	Path          string
	DefaultBranch string
}

// Project is a named collection of one or more Repos.
type Project struct {
	ID    string
	Name  string
	Repos []Repo
}

// RepoByID returns the repo with the given id, or false if absent.
func (p *Project) RepoByID(id string) (Repo, bool) {
	for _, r := range p.Repos {
		if r.ID == id {
			return r, true
		}
	}
	return Repo{}, false
}
