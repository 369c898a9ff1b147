// Package browserprocess keeps track of the browser processes launched during
// a battery run so they can be killed if the run dies before teardown.
package browserprocess

import (
	"context"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/knowledgekitchen/pagecheck/log"
)

type processState struct {
	pid   int
	runID string
}

var (
	browserProcessRegister   = map[string]*processState{} //nolint:gochecknoglobals
	browserProcessRegisterMu = sync.Mutex{}               //nolint:gochecknoglobals
)

func key(runID string, pid int) string {
	return runID + "/" + strconv.Itoa(pid)
}

// Register records pid as a browser process of the run found in ctx.
func Register(ctx context.Context, logger *log.Logger, pid int) {
	browserProcessRegisterMu.Lock()
	defer browserProcessRegisterMu.Unlock()

	rID := GetRunID(ctx)
	logger.Debugf("BrowserProcess:register", "registered browser pid %d for run %q", pid, rID)

	browserProcessRegister[key(rID, pid)] = &processState{pid: pid, runID: rID}
}

// Unregister forgets pid after its browser was closed gracefully.
func Unregister(ctx context.Context, logger *log.Logger, pid int) {
	browserProcessRegisterMu.Lock()
	defer browserProcessRegisterMu.Unlock()

	rID := GetRunID(ctx)
	logger.Debugf("BrowserProcess:unregister", "unregistered browser pid %d for run %q", pid, rID)

	delete(browserProcessRegister, key(rID, pid))
}

// Registered returns the pids still registered for the run found in ctx.
func Registered(ctx context.Context) []int {
	browserProcessRegisterMu.Lock()
	defer browserProcessRegisterMu.Unlock()

	rID := GetRunID(ctx)
	var pids []int
	for _, v := range browserProcessRegister {
		if v.runID == rID {
			pids = append(pids, v.pid)
		}
	}
	sort.Ints(pids)

	return pids
}

// ForceProcessShutdown kills every browser still registered for the run
// found in ctx, or every registered browser when ctx carries no run ID. It
// should be called when pagecheck is shutting down without having gone
// through teardown (a panic or an interrupt). It returns how many processes
// were signalled.
func ForceProcessShutdown(ctx context.Context) int {
	browserProcessRegisterMu.Lock()
	defer browserProcessRegisterMu.Unlock()

	rID := GetRunID(ctx)
	var n int
	for k, v := range browserProcessRegister {
		if rID != "" && v.runID != rID {
			continue
		}
		Kill(v.pid)
		delete(browserProcessRegister, k)
		n++
	}

	return n
}

// Kill will look for and kill the process with the given pid. It is a
// variable so tests can replace it and avoid killing real processes.
var Kill = func(pid int) { //nolint:gochecknoglobals
	p, err := os.FindProcess(pid)
	if err != nil {
		// optimistically continue and don't kill the process
		return
	}
	// no need to check the error since we're already dying.
	_ = p.Kill()
	_ = p.Release()
}
