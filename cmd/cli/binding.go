/*
 * Copyright 2023 ICON Foundation
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"os"
	"strings"

	"github.com/icon-project/btp2/common/cli"
	"github.com/icon-project/btp2/common/errors"
	"github.com/icon-project/btp2/common/log"
	"github.com/spf13/cobra"

	"github.com/icon-project/contract-binder/artifact"
	"github.com/icon-project/contract-binder/contract"
	"github.com/icon-project/contract-binder/contract/eth"
)

// LoadBinding builds the Binding of the contract in the artifact file. name
// selects a contract when the file has more than one.
func LoadBinding(path, name, networkType string) (*contract.Binding, error) {
	as, err := artifact.LoadFile(path, name)
	if err != nil {
		return nil, err
	}
	var a *artifact.Artifact
	if len(as) == 1 {
		a = as[0]
	} else {
		names := make([]string, len(as))
		for i, v := range as {
			if v.Name == name {
				a = v
			}
			names[i] = v.Name
		}
		if a == nil {
			return nil, contract.ErrorCodeNotFoundBinding.Errorf(
				"not found binding:%s, use one of [%s]", name, strings.Join(names, ","))
		}
	}
	codec, err := contract.CodecOf(networkType)
	if err != nil {
		return nil, err
	}
	return a.Binding(codec)
}

func NewBindingCommands(parentCmd *cobra.Command) {
	addBindingFlags := func(cmd *cobra.Command) {
		fs := cmd.Flags()
		fs.String("name", "", "contract name, required if the artifact has more than one")
		fs.String("network.type", eth.NetworkTypeEth, "network type")
	}
	bindingOf := func(cmd *cobra.Command, path string) (*contract.Binding, error) {
		return LoadBinding(path,
			cmd.Flag("name").Value.String(),
			cmd.Flag("network.type").Value.String())
	}

	docCmd := &cobra.Command{
		Use:   "doc ARTIFACT",
		Short: "Print the interface of contract",
		Args:  cli.ArgsWithDefaultErrorFunc(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := bindingOf(cmd, args[0])
			if err != nil {
				return err
			}
			cmd.Print(b.Doc())
			return nil
		},
	}
	addBindingFlags(docCmd)
	parentCmd.AddCommand(docCmd)

	deployDataCmd := &cobra.Command{
		Use:   "deploy-data ARTIFACT [ARG...]",
		Short: "Print the data for deploying contract",
		Args:  cli.ArgsWithDefaultErrorFunc(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := bindingOf(cmd, args[0])
			if err != nil {
				return err
			}
			ctorArgs := make([]interface{}, 0, len(args)-1)
			for _, arg := range args[1:] {
				ctorArgs = append(ctorArgs, arg)
			}
			data, err := b.DeployData(ctorArgs...)
			if err != nil {
				return err
			}
			cmd.Println(string(data))
			return nil
		},
	}
	addBindingFlags(deployDataCmd)
	parentCmd.AddCommand(deployDataCmd)

	balanceCmd := &cobra.Command{
		Use:   "balance ARTIFACT ADDRESS",
		Short: "Print the balance of contract",
		Args:  cli.ArgsWithDefaultErrorFunc(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			networkType := cmd.Flag("network.type").Value.String()
			b, err := bindingOf(cmd, args[0])
			if err != nil {
				return err
			}
			l := log.GlobalLogger()
			if lv, err := log.ParseLevel(cmd.Flag("log_level").Value.String()); err != nil {
				return errors.Wrapf(err, "fail to parseLevel log_level err:%s", err.Error())
			} else {
				l.SetLevel(lv)
			}
			c, err := contract.NewClient(networkType, cmd.Flag("endpoint").Value.String(), nil, l)
			if err != nil {
				return err
			}
			inst := b.New(contract.Address(args[1]), c)
			v, err := inst.Balance(context.Background(), contract.BlockID(cmd.Flag("block").Value.String()))
			if err != nil {
				return err
			}
			return cli.JsonPrettyPrintln(os.Stdout, v)
		},
	}
	addBindingFlags(balanceCmd)
	balanceFlags := balanceCmd.Flags()
	balanceFlags.String("endpoint", "http://localhost:8545", "endpoint of network")
	balanceFlags.String("block", "", "block (latest,pending,earliest or height)")
	balanceFlags.String("log_level", "info", "Global log level (trace,debug,info,warn,error,fatal,panic)")
	parentCmd.AddCommand(balanceCmd)
}
