package service

// Package service implements execution of FOSSLight Scanner batches.
//
// Overview
// The Orchestrator owns a virtual environment (venv.Env), a Runner and a
// broadcast of scanner output. Execute expands a model.Batch into
// invocations and runs them strictly one at a time through the Runner.
//
// Runner is a thin, opinionated wrapper around os/exec:
//   - starts the scanner binary of the venv with a structured argv
//   - activates the venv through the environment (VIRTUAL_ENV, PATH)
//   - stdin is the null device
//   - stdout and stderr share one pipe, every chunk is published as it arrives
//   - tracks the single running child for ForceQuit
//
// Data flow:
//
//   Supervisor          Orchestrator             Runner{cmd}
//       |                    |                       |
//   scan -> parser.Parse     |                       |
//       | Execute(batch) --->| Expand                |
//       |                    | for each invocation:  |
//       |                    | Run(inv) ------------>| Start()
//       |                    |<-- chunks (broadcast) | stdout+stderr
//       |                    |<-- path or ScanError -| Wait()
//       |<---- Result -------|                       |
//   upload(Result)           |                       |
//
// Invariants:
//   - At most one child process per Runner at a time.
//   - Invocation i+1 starts only after invocation i has exited.
//   - The first failed invocation stops the batch; paths of the preceding
//     ones stay in Result.Data.
//   - ForceQuit kills the process group (taskkill /T on windows) and the
//     batch fails with the exit error of the killed child.
//   - No timeout unless Orchestrator.WithTimeout is used.
//
// Supervisor runs configured scans once (manual mode) or on a gocron
// schedule (timer mode) and uploads every Result to stdout, a directory, a
// results repository or an S3 bucket.
