package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	var flags rootFlags

	rootCmd := &cobra.Command{
		Use:           "ratingscout",
		Short:         "按片名与导演批量查询新西兰影视分级",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "配置文件路径（默认查找输入文件旁或当前目录的 ratingscout.toml）")

	rootCmd.AddCommand(newRunCommand(&flags))
	rootCmd.AddCommand(newServeCommand(&flags))
	return rootCmd
}
