package migration

import "time"

// PollResult is the terminal outcome of a poll-until-terminal loop.
type PollResult int

const (
	PollSucceeded PollResult = iota
	PollFailed
	PollTimedOut
)

func (p PollResult) String() string {
	switch p {
	case PollSucceeded:
		return "succeeded"
	case PollFailed:
		return "failed"
	case PollTimedOut:
		return "timed out"
	}
	return "unknown"
}

// pollUntil repeatedly evaluates check until its status equals the success or
// failure sentinel, or maxWait elapses. The last observed status is returned
// alongside the result. A check error terminates the loop as a failure.
//
// The loop checks before sleeping, so it runs at most ceil(maxWait/interval)+1
// iterations.
func pollUntil(check func() (string, error), success, failure string, interval, maxWait time.Duration) (PollResult, string, error) {
	deadline := time.Now().Add(maxWait)
	for {
		status, err := check()
		if err != nil {
			return PollFailed, status, err
		}
		if status == success {
			return PollSucceeded, status, nil
		}
		if failure != "" && status == failure {
			return PollFailed, status, nil
		}
		if !time.Now().Before(deadline) {
			return PollTimedOut, status, nil
		}
		time.Sleep(interval)
	}
}
