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
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/rvsm/monitor/pkg/sm/enclave"
)

type demoCommand struct {
	configPath string
}

func (*demoCommand) Name() string     { return "demo" }
func (*demoCommand) Synopsis() string { return "run a full create/run/exit/attest/destroy cycle" }
func (*demoCommand) Usage() string {
	return "demo: exercise the lifecycle core end to end against the simulated collaborators.\n"
}
func (c *demoCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "path to a TOML monitor configuration")
}

func (c *demoCommand) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	log := logrus.NewEntry(logrus.StandardLogger())

	mon, cleanup, err := newSimMonitor(c.configPath, log)
	if err != nil {
		log.WithError(err).Error("setup failed")
		return subcommands.ExitFailure
	}
	defer cleanup()

	const (
		epmBase = 0x10_0000
		epmSize = 0x20_0000
		utmBase = 0x40_0000
		utmSize = 0x10_0000
		eidOut  = 0x1000 // host-side output slot for the assigned EID
	)

	eid, err := mon.CreateEnclave(enclave.CreateArgs{
		EPMBase: epmBase,
		EPMSize: epmSize,
		UTMBase: utmBase,
		UTMSize: utmSize,
		EidPptr: eidOut,
	})
	if err != nil {
		fmt.Printf("create: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("create: eid=%d\n", eid)

	host := &enclave.RegisterFrame{}
	if err := mon.RunEnclave(host, eid); err != nil {
		fmt.Printf("run: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println("run: ok")

	if err := mon.ExitEnclave(host, eid); err != nil {
		fmt.Printf("exit: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println("exit: ok")

	const (
		reportPtr = utmBase + 0x100
		dataAddr  = utmBase + 0x10
		dataSize  = 64
	)
	if err := mon.AttestEnclave(eid, reportPtr, dataAddr, dataSize); err != nil {
		fmt.Printf("attest: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println("attest: ok")

	snap, err := mon.Snapshot(eid)
	if err != nil {
		fmt.Printf("snapshot: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("status: eid=%d state=%s n_thread=%d regions=%d\n", snap.EID, snap.State, snap.NThread, len(snap.Regions))

	if err := mon.DestroyEnclave(eid); err != nil {
		fmt.Printf("destroy: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println("destroy: ok")

	return subcommands.ExitSuccess
}
