package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baechuer/contacts-api/internal/infrastructure/security"
)

var hashCost int

var hashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Read a password from stdin and print its bcrypt digest",
	Args:  cobra.NoArgs,
	RunE:  runHash,
}

func init() {
	hashCmd.Flags().IntVar(&hashCost, "cost", defaultBcryptCost(), "bcrypt cost (defaults to BCRYPT_COST or 12)")
	rootCmd.AddCommand(hashCmd)
}

func defaultBcryptCost() int {
	if v, err := strconv.Atoi(os.Getenv("BCRYPT_COST")); err == nil && v > 0 {
		return v
	}
	return 12
}

func runHash(cmd *cobra.Command, args []string) error {
	digest, err := hashPassword(cmd.InOrStdin(), hashCost)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), digest)
	return nil
}

// hashPassword hashes the first line of r.
func hashPassword(r io.Reader, cost int) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("empty password")
	}
	if len(pw) > 72 {
		return "", errors.New("password longer than 72 bytes")
	}
	return security.NewBcryptHasher(cost).Hash(pw)
}
