package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"

	"github.com/quillhost/installer/internal/types"
)

// CompleteRequest prompts for every required field the flags left empty.
// Only used with --interactive; non-interactive runs fail validation
// instead so automation never hangs on a prompt.
func CompleteRequest(req *types.InstallRequest) error {
	var err error

	if req.Domain == "" {
		if req.Domain, err = promptText("Panel domain (e.g. panel.example.com)"); err != nil {
			return err
		}
	}
	if req.AdminEmail == "" {
		if req.AdminEmail, err = promptText("Administrator email"); err != nil {
			return err
		}
	}
	if req.AdminUsername == "" {
		if req.AdminUsername, err = promptText("Administrator username"); err != nil {
			return err
		}
	}
	if req.FirstName == "" {
		if req.FirstName, err = promptText("Administrator first name"); err != nil {
			return err
		}
	}
	if req.LastName == "" {
		if req.LastName, err = promptText("Administrator last name"); err != nil {
			return err
		}
	}
	if req.AdminPassword == "" {
		if req.AdminPassword, err = promptSecret("Administrator password"); err != nil {
			return err
		}
	}

	return confirmRequest(req)
}

func confirmRequest(req *types.InstallRequest) error {
	fmt.Printf("\n🚀 Installation summary:\n")
	fmt.Printf("✔ Panel URL: %s\n", req.BaseURL())
	fmt.Printf("✔ Administrator: %s <%s>\n", req.AdminUsername, req.AdminEmail)
	fmt.Printf("✔ TLS: %v (%s)\n", req.UseSSL, req.TLSPolicy)
	fmt.Printf("✔ Node agent: %v\n", req.DeployWings)
	if req.NodeDomain != "" {
		fmt.Printf("✔ Node domain: %s\n", req.NodeDomain)
	}
	fmt.Println()

	confirm := promptui.Select{
		Label: "Do you want to proceed with the installation?",
		Items: []string{"Yes", "No"},
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "➤ {{ . | green }}",
			Inactive: "  {{ . }}",
			Selected: "✔ {{ . | green }}",
		},
	}

	idx, _, err := confirm.Run()
	if err != nil {
		return fmt.Errorf("confirmation prompt failed: %v", err)
	}
	if idx == 1 {
		return fmt.Errorf("installation cancelled by user")
	}
	return nil
}

func promptText(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("value cannot be empty")
			}
			return nil
		},
	}
	return prompt.Run()
}

func promptSecret(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(s string) error {
			if len(s) < 8 {
				return fmt.Errorf("password must be at least 8 characters")
			}
			return nil
		},
	}
	return prompt.Run()
}

// PrintWarning highlights a non-fatal problem the operator must follow up.
func PrintWarning(format string, args ...interface{}) {
	color.New(color.FgYellow).Printf("⚠️  "+format+"\n", args...)
}

// PrintSuccess prints the end-of-run pointers.
func PrintSuccess(url, summaryPath string) {
	fmt.Println()
	color.New(color.FgGreen).Println("✅ Installation completed!")
	fmt.Printf("\n🖥️  Panel: %s\n", url)
	fmt.Printf("🔑 Credentials and details: %s\n", summaryPath)
	fmt.Println("\n📝 Next steps:")
	fmt.Println("1. Log in with the administrator account you supplied")
	fmt.Println("2. Review the generated database credentials in the summary file")
	fmt.Println("3. If certificate issuance was skipped, fix DNS and re-run certbot")
}
