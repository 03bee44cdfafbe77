package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "payment-cli",
	Short: "payment-core 运维命令行工具",
	Long: `payment-core 的运维工具。
支持初始化加密 Keystore (BIP-39 助记词) 以及预览钱包池地址。`,
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
