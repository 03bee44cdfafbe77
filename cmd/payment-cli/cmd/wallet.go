package cmd

import (
	"fmt"
	"os"
	"syscall"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"payment-core/pkg/address"
	"payment-core/pkg/bip32"
	"payment-core/pkg/bip39"
	"payment-core/pkg/keystore"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "钱包池相关操作",
}

// deriveCmd 预览池钱包地址，不触碰数据库
var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "按派生索引预览池钱包地址 (m/0/index)",
	Run: func(cmd *cobra.Command, args []string) {
		index, _ := cmd.Flags().GetUint32("index")
		keystoreFile, _ := cmd.Flags().GetString("keystore")

		encryptedKey, err := keystore.LoadFromFile(keystoreFile)
		if err != nil {
			fmt.Printf("读取 Keystore 失败: %v\n", err)
			os.Exit(1)
		}

		fmt.Print("Keystore 密码: ")
		bytePassword, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fmt.Println("\n读取密码失败:", err)
			os.Exit(1)
		}
		fmt.Println()

		mnemonic, err := keystore.DecryptMnemonic(encryptedKey, string(bytePassword))
		if err != nil {
			fmt.Printf("解密失败: %v\n", err)
			os.Exit(1)
		}

		seed := bip39.NewMnemonicService().MnemonicToSeed(mnemonic, "")
		hdWallet, err := bip32.NewMasterKeyFromSeed(seed, &chaincfg.MainNetParams)
		if err != nil {
			fmt.Printf("派生 Master Key 失败: %v\n", err)
			os.Exit(1)
		}

		chainKey, err := hdWallet.MasterKey().Derive(0)
		if err != nil {
			fmt.Printf("派生失败: %v\n", err)
			os.Exit(1)
		}
		childKey, err := chainKey.Derive(index)
		if err != nil {
			fmt.Printf("派生失败: %v\n", err)
			os.Exit(1)
		}

		pubKey, err := childKey.ECPubKey()
		if err != nil {
			fmt.Printf("获取公钥失败: %v\n", err)
			os.Exit(1)
		}

		addr, err := address.NewETHGenerator().PubKeyToAddress(pubKey.SerializeUncompressed())
		if err != nil {
			fmt.Printf("生成地址失败: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("路径:  m/0/%d\n", index)
		fmt.Printf("地址:  %s\n", addr)
	},
}

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(deriveCmd)
	deriveCmd.Flags().Uint32P("index", "i", 1, "HD 派生索引")
	deriveCmd.Flags().StringP("keystore", "k", "wallet.json", "Keystore 文件路径")
}
