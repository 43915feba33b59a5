package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Aggregator fetches both providers concurrently. Each provider's failure is
// caught independently and surfaces as an unavailable snapshot; it never
// aborts the sibling fetch or the job.
type Aggregator struct {
	Github   *GithubClient
	LeetCode *LeetCodeClient
	Log      *logrus.Logger
}

// Fetch launches one fetch per configured username. A nil username means the
// provider was not attempted and yields a nil snapshot, which is distinct
// from an unavailable one.
func (a *Aggregator) Fetch(ctx context.Context, githubUser, leetcodeUser *string) (*GithubSnapshot, *LeetCodeSnapshot) {
	var (
		wg sync.WaitGroup
		gh *GithubSnapshot
		lc *LeetCodeSnapshot
	)

	if githubUser != nil && *githubUser != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := a.Github.Fetch(ctx, *githubUser)
			if err != nil {
				a.Log.WithError(err).WithField("username", *githubUser).Warn("github fetch failed")
				gh = &GithubSnapshot{Unavailable: true, FetchedAt: time.Now()}
				return
			}
			gh = snap
		}()
	}

	if leetcodeUser != nil && *leetcodeUser != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := a.LeetCode.Fetch(ctx, *leetcodeUser)
			if err != nil {
				a.Log.WithError(err).WithField("username", *leetcodeUser).Warn("leetcode fetch failed")
				lc = &LeetCodeSnapshot{Unavailable: true, FetchedAt: time.Now()}
				return
			}
			lc = snap
		}()
	}

	wg.Wait()
	return gh, lc
}
