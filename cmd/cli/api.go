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
	"encoding/json"
	"os"
	"strings"

	"github.com/icon-project/btp2/common/cli"
	"github.com/icon-project/btp2/common/errors"
	"github.com/icon-project/btp2/common/intconv"
	"github.com/icon-project/btp2/common/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/icon-project/contract-binder/api"
	"github.com/icon-project/contract-binder/contract"
	"github.com/icon-project/contract-binder/contract/eth"
	"github.com/icon-project/contract-binder/database"
)

func GetStringToInterface(fs *pflag.FlagSet, name string) (map[string]interface{}, error) {
	m, err := fs.GetStringToString(name)
	if err != nil {
		return nil, err
	}
	r := make(map[string]interface{})
	for k, v := range m {
		r[k] = v
	}
	return r, nil
}

// ReadAndUnmarshal accepts a json string or a path of json file.
func ReadAndUnmarshal(raw string, v interface{}) error {
	var b []byte
	if s := strings.TrimSpace(raw); strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		b = []byte(s)
	} else {
		var err error
		if b, err = os.ReadFile(raw); err != nil {
			return err
		}
	}
	return json.Unmarshal(b, v)
}

func ClientPersistentPreRunE(vc *viper.Viper, c *api.Client) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := cli.ValidateFlagsWithViper(vc, cmd.Flags()); err != nil {
			return err
		}
		l := log.GlobalLogger()
		if lv, err := log.ParseLevel(vc.GetString("log_level")); err != nil {
			return errors.Wrapf(err, "fail to parseLevel log_level err:%s", err.Error())
		} else {
			l.SetLevel(lv)
		}
		if lv, err := log.ParseLevel(vc.GetString("console_level")); err != nil {
			return errors.Wrapf(err, "fail to parseLevel console_level err:%s", err.Error())
		} else {
			l.SetConsoleLevel(lv)
		}
		dumpLogLevel, err := log.ParseLevel(vc.GetString("dump_log_level"))
		if err != nil {
			return errors.Wrapf(err, "fail to parseLevel dump_log_level err:%s", err.Error())
		}
		*c = *api.NewClient(
			vc.GetString("url"),
			contract.EnsureTransportLogLevel(dumpLogLevel),
			l)
		return nil
	}
}

func AddClientRequiredFlags(c *cobra.Command) {
	pFlags := c.PersistentFlags()
	pFlags.String("url", "http://localhost:8080", "server address")
	pFlags.String("log_level", "debug", "Global log level (trace,debug,info,warn,error,fatal,panic)")
	pFlags.String("console_level", "trace", "Console log level (trace,debug,info,warn,error,fatal,panic)")
	pFlags.String("dump_log_level", "trace", "client dump log level (trace,debug,info)")
}

func NewApiCommand(parentCmd *cobra.Command, parentVc *viper.Viper) (*cobra.Command, *viper.Viper) {
	rootCmd, rootVc := cli.NewCommand(parentCmd, parentVc, "api", "API cli")
	var (
		c api.Client
	)
	rootCmd.PersistentPreRunE = ClientPersistentPreRunE(rootVc, &c)
	AddClientRequiredFlags(rootCmd)
	cli.BindPFlags(rootVc, rootCmd.PersistentFlags())

	rootCmd.AddCommand(&cobra.Command{
		Use:   "networks",
		Short: "Get list of network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := c.Networks()
			if err != nil {
				return err
			}
			return cli.JsonPrettyPrintln(os.Stdout, r)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "bindings",
		Short: "Get list of binding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := c.Bindings()
			if err != nil {
				return err
			}
			return cli.JsonPrettyPrintln(os.Stdout, r)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "binding NAME",
		Short: "Get binding information",
		Args:  cli.ArgsWithDefaultErrorFunc(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := c.Binding(args[0])
			if err != nil {
				return err
			}
			return cli.JsonPrettyPrintln(os.Stdout, r)
		},
	})
	deployDataCmd := &cobra.Command{
		Use:   "deploy-data NAME [ARG...]",
		Short: "Get data for deploying binding",
		Args:  cli.ArgsWithDefaultErrorFunc(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &api.DeployRequest{
				NetworkType: cmd.Flag("network.type").Value.String(),
			}
			for _, arg := range args[1:] {
				req.Args = append(req.Args, arg)
			}
			r, err := c.DeployData(args[0], req)
			if err != nil {
				return err
			}
			cmd.Println(r)
			return nil
		},
	}
	deployDataCmd.Flags().String("network.type", eth.NetworkTypeEth, "network type")
	rootCmd.AddCommand(deployDataCmd)

	deploymentsCmd := &cobra.Command{
		Use:   "deployments NETWORK",
		Short: "Get list of deployment",
		Args:  cli.ArgsWithDefaultErrorFunc(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			p := database.Pageable{}
			p.Page, _ = fs.GetUint("page")
			p.Size, _ = fs.GetUint("size")
			p.Sort, _ = fs.GetString("sort")
			r, err := c.Deployments(args[0], p)
			if err != nil {
				return err
			}
			return cli.JsonPrettyPrintln(os.Stdout, r)
		},
	}
	deploymentsFlags := deploymentsCmd.Flags()
	deploymentsFlags.Uint("page", 0, "page, 0-indexed")
	deploymentsFlags.Uint("size", 0, "page size, zero for unlimited")
	deploymentsFlags.String("sort", "", "sort, for example 'name desc,id'")
	rootCmd.AddCommand(deploymentsCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "register NETWORK NAME ADDRESS",
		Short: "Register deployment",
		Args:  cli.ArgsWithDefaultErrorFunc(cobra.ExactArgs(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := c.Register(args[0], &api.RegisterRequest{
				Name:    args[1],
				Address: contract.Address(args[2]),
			})
			if err != nil {
				return err
			}
			return cli.JsonPrettyPrintln(os.Stdout, r)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "unregister NETWORK NAME ADDRESS",
		Short: "Unregister deployment",
		Args:  cli.ArgsWithDefaultErrorFunc(cobra.ExactArgs(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Unregister(args[0], &api.RegisterRequest{
				Name:    args[1],
				Address: contract.Address(args[2]),
			})
		},
	})
	balanceCmd :=&cobra.Command{
		Use:   "balance NETWORK NAME ADDRESS",
		Short: "Get balance of contract",
		Args:  cli.ArgsWithDefaultErrorFunc(cobra.ExactArgs(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := c.Balance(args[0], args[1], contract.Address(args[2]),
				contract.BlockID(cmd.Flag("block").Value.String()))
			if err != nil {
				return err
			}
			return cli.JsonPrettyPrintln(os.Stdout, r)
		},
	}
	balanceCmd.Flags().String("block", "", "block (latest,pending,earliest or height)")
	rootCmd.AddCommand(balanceCmd)

	eventsCmd := &cobra.Command{
		Use:   "events NETWORK NAME ADDRESS EVENT",
		Short: "Get list of event in height range",
		Args:  cli.ArgsWithDefaultErrorFunc(cobra.ExactArgs(4)),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := intconv.ParseInt(cmd.Flag("from").Value.String(), 64)
			if err != nil {
				return err
			}
			to, err := intconv.ParseInt(cmd.Flag("to").Value.String(), 64)
			if err != nil {
				return err
			}
			r, err := c.FilterEvents(args[0], args[1], contract.Address(args[2]), args[3], from, to)
			if err != nil {
				return err
			}
			return cli.JsonPrettyPrintln(os.Stdout, r)
		},
	}
	eventsFlags := eventsCmd.Flags()
	eventsFlags.String("from", "0", "from height")
	eventsFlags.String("to", "0", "to height, zero for latest")
	rootCmd.AddCommand(eventsCmd)

	var (
		network, name, method string
		addr                  contract.Address
		req                   = &api.Request{}
	)
	newMethodApiCommand := func(use, short string) *cobra.Command {
		cmd := &cobra.Command{
			Use:   use + " NETWORK NAME ADDRESS METHOD [ARG...]",
			Short: short,
			Args:  cli.ArgsWithDefaultErrorFunc(cobra.MinimumNArgs(4)),
			PreRunE: func(cmd *cobra.Command, args []string) error {
				network, name, addr, method = args[0], args[1], contract.Address(args[2]), args[3]
				var (
					fs  = cmd.Flags()
					err error
				)
				if raw := cmd.Flag("raw").Value.String(); len(raw) > 0 {
					if err = ReadAndUnmarshal(raw, req); err != nil {
						return err
					}
				}
				for _, arg := range args[4:] {
					req.Args = append(req.Args, arg)
				}
				if params, err := GetStringToInterface(fs, "param"); err != nil {
					return err
				} else if len(params) > 0 {
					req.Params = params
				}
				if options, err := GetStringToInterface(fs, "option"); err != nil {
					return err
				} else if len(options) > 0 {
					req.Options = options
				}
				return nil
			},
		}
		fs := cmd.Flags()
		fs.StringToString("param", nil,
			"key=value, Function parameters by name, ignored if ARG given")
		fs.StringToString("option", nil,
			"key=value, Call options, if '--raw' used, will overwrite")
		fs.String("raw", "", "request using raw json file or json-string")
		return cmd
	}

	callCmd := newMethodApiCommand("call", "Call")
	callCmd.RunE = func(cmd *cobra.Command, args []string) error {
		resp, err := c.Call(network, name, addr, method, req)
		if err != nil {
			return err
		}
		if err = cli.JsonPrettyPrintln(os.Stdout, resp); err != nil {
			return errors.Errorf("failed JsonIntend resp=%+v, err=%+v", resp, err)
		}
		return nil
	}
	rootCmd.AddCommand(callCmd)

	transactCmd := newMethodApiCommand("transact", "Transact")
	transactCmd.RunE = func(cmd *cobra.Command, args []string) error {
		var s api.Signer
		if keystore := cmd.Flag("keystore").Value.String(); len(keystore) > 0 {
			signer, err := eth.LoadSigner(keystore, cmd.Flag("secret").Value.String())
			if err != nil {
				return err
			}
			s = signer
		}
		txID, err := c.Transact(network, name, addr, method, req, s)
		if err != nil {
			return err
		}
		if err = cli.JsonPrettyPrintln(os.Stdout, txID); err != nil {
			return errors.Errorf("failed JsonIntend resp=%+v, err=%+v", txID, err)
		}
		return nil
	}
	rootCmd.AddCommand(transactCmd)
	transactFlags := transactCmd.Flags()
	transactFlags.String("keystore", "", "keystore file path")
	transactFlags.String("secret", "", "secret file path")
	return rootCmd, rootVc
}
