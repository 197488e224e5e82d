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

	"github.com/icon-project/btp2/common/cli"
	"github.com/icon-project/btp2/common/intconv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/icon-project/contract-binder/api"
	"github.com/icon-project/contract-binder/contract"
)

func NewMonitorCommand(parentCmd *cobra.Command, parentVc *viper.Viper) (*cobra.Command, *viper.Viper) {
	rootCmd, rootVc := cli.NewCommand(parentCmd, parentVc, "monitor", "Monitor cli")
	var (
		c api.Client
	)
	rootCmd.PersistentPreRunE = ClientPersistentPreRunE(rootVc, &c)
	AddClientRequiredFlags(rootCmd)
	cli.BindPFlags(rootVc, rootCmd.PersistentFlags())

	eventCmd := &cobra.Command{
		Use:   "event NETWORK NAME ADDRESS EVENT...",
		Short: "Event monitor",
		Args:  cli.ArgsWithDefaultErrorFunc(cobra.MinimumNArgs(4)),
		RunE: func(cmd *cobra.Command, args []string) error {
			height, err := intconv.ParseInt(cmd.Flag("height").Value.String(), 64)
			if err != nil {
				return err
			}
			req := &api.MonitorRequest{
				Events: args[3:],
				Height: height,
			}
			ctx, cancel := context.WithCancel(context.Background())
			cli.OnInterrupt(cancel)
			onEvent := func(e *contract.Event) error {
				return cli.JsonPrettyPrintln(os.Stdout, e)
			}
			return c.MonitorEvent(ctx, args[0], args[1], contract.Address(args[2]), req, onEvent)
		},
	}
	rootCmd.AddCommand(eventCmd)
	eventCmd.Flags().String("height", "0", "height to start from, zero for latest")
	return rootCmd, rootVc
}
