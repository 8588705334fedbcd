// Copyright 2024 The RVSM Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/cenkalti/backoff"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/rvsm/monitor/pkg/sm/enclave"
	"github.com/rvsm/monitor/pkg/sm/retcode"
)

// createCommand exercises CreateEnclave on its own, retrying on
// NoFreeResource: spec.md §7 states the core itself performs no retries
// and that "retry policy belongs to the host" — this command is that
// host-side policy, backed by cenkalti/backoff's exponential backoff
// rather than a hand-rolled sleep loop.
type createCommand struct {
	configPath string
	epmBase    uint64
	epmSize    uint64
	utmBase    uint64
	utmSize    uint64
	eidPptr    uint64
	retries    int
}

func (*createCommand) Name() string     { return "create" }
func (*createCommand) Synopsis() string { return "create a single enclave and report its EID" }
func (*createCommand) Usage() string {
	return "create -epm-base=N -epm-size=N -utm-base=N -utm-size=N: reserve an enclave.\n"
}

func (c *createCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "path to a TOML monitor configuration")
	f.Uint64Var(&c.epmBase, "epm-base", 0x10_0000, "EPM region base address")
	f.Uint64Var(&c.epmSize, "epm-size", 0x20_0000, "EPM region size")
	f.Uint64Var(&c.utmBase, "utm-base", 0x40_0000, "UTM region base address")
	f.Uint64Var(&c.utmSize, "utm-size", 0x10_0000, "UTM region size")
	f.Uint64Var(&c.eidPptr, "eid-pptr", 0x1000, "host address to receive the assigned EID")
	f.IntVar(&c.retries, "retries", 3, "max retries on NO_FREE_RESOURCE")
}

func (c *createCommand) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	log := logrus.NewEntry(logrus.StandardLogger())

	mon, cleanup, err := newSimMonitor(c.configPath, log)
	if err != nil {
		log.WithError(err).Error("setup failed")
		return subcommands.ExitFailure
	}
	defer cleanup()

	var eid int
	attempt := 0
	op := func() error {
		attempt++
		var createErr error
		eid, createErr = mon.CreateEnclave(enclave.CreateArgs{
			EPMBase: c.epmBase,
			EPMSize: c.epmSize,
			UTMBase: c.utmBase,
			UTMSize: c.utmSize,
			EidPptr: c.eidPptr,
		})
		if errors.Is(createErr, retcode.NoFreeResource) {
			return createErr // retryable
		}
		if createErr != nil {
			return backoff.Permanent(createErr)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0
	retryPolicy := backoff.WithMaxRetries(policy, uint64(c.retries))

	if err := backoff.Retry(op, retryPolicy); err != nil {
		fmt.Printf("create failed after %d attempt(s): %v\n", attempt, err)
		return subcommands.ExitFailure
	}

	fmt.Printf("create: eid=%d (attempt %d)\n", eid, attempt)
	return subcommands.ExitSuccess
}
