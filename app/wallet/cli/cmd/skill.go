package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Interact with the skill marketplace",
}

func init() {
	rootCmd.AddCommand(skillCmd)
}

// --- skill create ---

var (
	skillCreateName    string
	skillCreateVersion string
	skillCreateType    string
	skillCreateFiles   []string
	skillCreateLicense string
	skillCreateEntry   string
)

var skillCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Publish a new skill manifest and its files to the marketplace",
	Run:   skillCreateRun,
}

func init() {
	skillCmd.AddCommand(skillCreateCmd)
	skillCreateCmd.Flags().StringVar(&skillCreateName, "name", "", "Skill name.")
	skillCreateCmd.Flags().StringVar(&skillCreateVersion, "version", "0.1.0", "Skill version.")
	skillCreateCmd.Flags().StringVar(&skillCreateType, "type", "tool", "Skill type.")
	skillCreateCmd.Flags().StringSliceVar(&skillCreateFiles, "file", nil, "Path to a file to include, repeatable.")
	skillCreateCmd.Flags().StringVar(&skillCreateLicense, "license", "MIT", "License identifier.")
	skillCreateCmd.Flags().StringVar(&skillCreateEntry, "entry", "", "Entry point file.")
	skillCreateCmd.MarkFlagRequired("name")
}

func skillCreateRun(cmd *cobra.Command, args []string) {
	wf, err := loadWallet(walletFilePath())
	if err != nil {
		log.Fatal(err)
	}

	files := make(map[string]string, len(skillCreateFiles))
	order := make([]string, 0, len(skillCreateFiles))
	for _, path := range skillCreateFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatal(err)
		}
		name := filepath.Base(path)
		files[name] = string(data)
		order = append(order, name)
	}

	req := skillCreateRequest{
		Name:      skillCreateName,
		Version:   skillCreateVersion,
		Type:      skillCreateType,
		Files:     files,
		FileOrder: order,
		Creator:   wf.PublicKey,
		License:   skillCreateLicense,
		Entry:     skillCreateEntry,
	}

	var resp struct {
		ID string `json:"id"`
	}

	if err := apiPost("/v1/skills", req, &resp); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Skill ID:", resp.ID)
}

// skillCreateRequest mirrors the node's POST /v1/skills payload shape.
type skillCreateRequest struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Type      string            `json:"type"`
	Files     map[string]string `json:"files"`
	FileOrder []string          `json:"file_order"`
	Creator   string            `json:"creator"`
	License   string            `json:"license"`
	Entry     string            `json:"entry"`
}

// --- skill list ---

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active marketplace listings",
	Run:   skillListRun,
}

func init() {
	skillCmd.AddCommand(skillListCmd)
}

func skillListRun(cmd *cobra.Command, args []string) {
	var listings []struct {
		SkillID string  `json:"skill_id"`
		Seller  string  `json:"seller"`
		Price   uint64  `json:"price"`
		Rating  float64 `json:"rating"`
	}

	if err := apiGet("/v1/skills", &listings); err != nil {
		log.Fatal(err)
	}

	for _, l := range listings {
		fmt.Printf("%s price=%d rating=%.2f seller=%s\n", l.SkillID, l.Price, l.Rating, l.Seller)
	}
}

// --- skill buy ---

var skillBuyID string

var skillBuyCmd = &cobra.Command{
	Use:   "buy",
	Short: "Purchase a skill, settled as a ledger transaction",
	Run:   skillBuyRun,
}

func init() {
	skillCmd.AddCommand(skillBuyCmd)
	skillBuyCmd.Flags().StringVar(&skillBuyID, "id", "", "Skill ID to purchase.")
	skillBuyCmd.MarkFlagRequired("id")
}

func skillBuyRun(cmd *cobra.Command, args []string) {
	wf, err := loadWallet(walletFilePath())
	if err != nil {
		log.Fatal(err)
	}

	req := struct {
		SkillID         string `json:"skill_id"`
		Buyer           string `json:"buyer"`
		BuyerPrivateKey string `json:"buyer_private_key"`
	}{skillBuyID, wf.PublicKey, wf.PrivateKey}

	var resp struct {
		TxDigest string `json:"tx_digest"`
	}

	if err := apiPost("/v1/skills/purchase", req, &resp); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Purchased. Digest:", resp.TxDigest)
}

// --- skill review ---

var (
	skillReviewID      string
	skillReviewRating  int
	skillReviewComment string
)

var skillReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Leave a review for a previously purchased skill",
	Run:   skillReviewRun,
}

func init() {
	skillCmd.AddCommand(skillReviewCmd)
	skillReviewCmd.Flags().StringVar(&skillReviewID, "id", "", "Skill ID to review.")
	skillReviewCmd.Flags().IntVar(&skillReviewRating, "rating", 5, "Rating from 1 to 5.")
	skillReviewCmd.Flags().StringVar(&skillReviewComment, "comment", "", "Review comment.")
	skillReviewCmd.MarkFlagRequired("id")
}

func skillReviewRun(cmd *cobra.Command, args []string) {
	wf, err := loadWallet(walletFilePath())
	if err != nil {
		log.Fatal(err)
	}

	req := struct {
		SkillID  string `json:"skill_id"`
		Reviewer string `json:"reviewer"`
		Rating   int    `json:"rating"`
		Comment  string `json:"comment"`
	}{skillReviewID, wf.PublicKey, skillReviewRating, skillReviewComment}

	if err := apiPost("/v1/skills/review", req, nil); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Review submitted.")
}
