package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/svcs-dev/svcs/internal/config"
	"github.com/svcs-dev/svcs/internal/fileutil"
	"github.com/svcs-dev/svcs/internal/hooks"
	"github.com/svcs-dev/svcs/internal/infrastructure/gitrepo"
	"github.com/svcs-dev/svcs/internal/infrastructure/store"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize SVCS in the current repository",
	Long: `Creates .svcs/ with the default configuration and the semantic
store, and installs the git hooks that keep analysis running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gitSvc, err := gitrepo.Open(".")
		if err != nil {
			return err
		}
		root := gitSvc.Root()

		svcsDir := filepath.Join(root, config.Dir)
		if err := os.MkdirAll(svcsDir, 0o755); err != nil {
			return err
		}

		configPath := filepath.Join(svcsDir, config.FileName)
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			blob, err := config.Default().YAML()
			if err != nil {
				return err
			}
			if err := fileutil.AtomicWriteFile(configPath, blob, 0o644); err != nil {
				return err
			}
			fmt.Println(styles.Success.Render("✓") + " wrote " + configPath)
		}

		cfg, err := config.Load(root)
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.StorePath(root))
		if err != nil {
			return err
		}
		defer st.Close()

		_, branch, err := gitSvc.Head(cmd.Context())
		if err != nil {
			// An empty repository has no HEAD yet; the first commit
			// hook fills the metadata in.
			branch = ""
		}
		blob, _ := cfg.YAML()
		if err := st.InitMeta(cmd.Context(), root, branch, string(blob), time.Now().Unix()); err != nil {
			return err
		}
		fmt.Println(styles.Success.Render("✓") + " store ready at " + cfg.StorePath(root))

		if err := hooks.Install(filepath.Join(root, ".git"), initForce); err != nil {
			return err
		}
		fmt.Println(styles.Success.Render("✓") + " git hooks installed")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite hooks not installed by svcs")
}
