/*
Copyright © 2014 the GeoData authors.
This file is part of GeoData.

GeoData is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GeoData is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GeoData.  If not, see <http://www.gnu.org/licenses/>.
*/

package geodatautil

import (
	"os"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// minSinkSize is the smallest size at which an existing sink file is
// trusted to be a complete output rather than a truncated run.
const minSinkSize = 1e6

// A Job is one unit of batch work, typically producing one output
// file from one or more source files. Jobs in a batch must write to
// disjoint sinks.
type Job struct {
	Name    string
	Sink    string   // output file path; empty disables the up-to-date check
	Sources []string // input file paths used for the up-to-date check
	Run     func() error
}

// UpToDate reports whether the sink file is newer than all sources
// and large enough to be a complete output. Jobs with an up-to-date
// sink are skipped instead of recomputed.
func (j *Job) UpToDate() bool {
	if j.Sink == "" {
		return false
	}
	sink, err := os.Stat(j.Sink)
	if err != nil || sink.Size() <= minSinkSize {
		return false
	}
	for _, src := range j.Sources {
		s, err := os.Stat(src)
		if err != nil || !sink.ModTime().After(s.ModTime()) {
			return false
		}
	}
	return true
}

// RunJobs runs the jobs on a bounded worker pool. A failing job is
// logged and does not stop its siblings; the first error is returned
// after all jobs have finished. workers <= 0 means one worker per CPU.
func RunJobs(jobs []*Job, workers int) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	jobChan := make(chan *Job)
	errChan := make(chan error, len(jobs))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobChan {
				if j.UpToDate() {
					logrus.WithField("job", j.Name).Info("output up to date, skipping")
					continue
				}
				// A stale sink is removed so that a failed run cannot
				// leave a plausible-looking output behind.
				if j.Sink != "" {
					os.Remove(j.Sink)
				}
				logrus.WithField("job", j.Name).Info("starting")
				if err := j.Run(); err != nil {
					logrus.WithField("job", j.Name).WithError(err).Error("failed")
					errChan <- err
					continue
				}
				logrus.WithField("job", j.Name).Info("done")
			}
		}()
	}
	for _, j := range jobs {
		jobChan <- j
	}
	close(jobChan)
	wg.Wait()
	close(errChan)
	return <-errChan
}
