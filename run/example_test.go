package run_test

import (
	"context"
	"fmt"
	"log"

	"github.com/jonwraymond/tooldebug/run"
	"github.com/jonwraymond/tooldebug/sandbox"
)

func ExampleRunner_Run() {
	root, err := sandbox.NewRoot(".")
	if err != nil {
		log.Fatal(err)
	}

	runner, err := run.NewRunner(
		run.WithRoot(root),
		run.WithPython("python3"),
		run.WithDefaultTarget("demo_project"),
	)
	if err != nil {
		log.Fatal(err)
	}

	res := runner.Run(context.Background(), run.Request{
		MaxOutputLines: run.DefaultMaxOutputLines,
		TimeoutSeconds: run.DefaultTimeoutSeconds,
	})
	if !res.OK {
		fmt.Println("run failed:", res.Error)
		return
	}
	fmt.Println("exit code:", res.ExitCode)
	fmt.Println(res.OutputTail)
}
