package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
	"github.com/aryan0dhankhar/societyhub/internal/handler"
	"github.com/aryan0dhankhar/societyhub/internal/service"
)

var client = &http.Client{Timeout: 30 * time.Second}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "society":
		err = handleSociety(args)
	case "resident":
		err = handleResident(args)
	case "flats":
		err = handleFlats(args)
	case "logout":
		err = os.Remove(tokenFile())
		if errors.Is(err, os.ErrNotExist) {
			err = nil
		}
		if err == nil {
			fmt.Println("✓ Logged out")
		}
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}

func handleSociety(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: societyhub society <register|login|profile|passwd>")
		return nil
	}

	switch args[0] {
	case "register":
		return registerSociety(args[1:])
	case "login":
		return login("society", args[1:])
	case "profile":
		return showProfile("/society/profile")
	case "passwd":
		return changePassword("/society/password", args[1:])
	default:
		return fmt.Errorf("unknown society command: %s", args[0])
	}
}

func handleResident(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: societyhub resident <login|profile|update|passwd>")
		return nil
	}

	switch args[0] {
	case "login":
		return login("resident", args[1:])
	case "profile":
		return showProfile("/resident/profile")
	case "update":
		return updateProfile(args[1:])
	case "passwd":
		return changePassword("/resident/password", args[1:])
	default:
		return fmt.Errorf("unknown resident command: %s", args[0])
	}
}

func handleFlats(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: societyhub flats <list|create|save>")
		return nil
	}

	switch args[0] {
	case "list":
		return listFlats()
	case "create":
		return saveFlat(args[1:], true)
	case "save":
		return saveFlat(args[1:], false)
	default:
		return fmt.Errorf("unknown flats command: %s", args[0])
	}
}

func registerSociety(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	req := handler.RegisterSocietyRequest{}
	fs.StringVar(&req.SocietyCode, "code", "", "society code (optional when self registration is enabled)")
	fs.StringVar(&req.SocietyName, "name", "", "society name")
	fs.StringVar(&req.Email, "email", "", "society login email")
	fs.StringVar(&req.Password, "password", "", "society password")
	fs.IntVar(&req.Wings, "wings", 1, "number of wings (1-26)")
	fs.IntVar(&req.FloorsPerWing, "floors", 1, "floors per wing")
	fs.IntVar(&req.RoomsPerFloor, "rooms", 1, "rooms per floor")
	fs.Parse(args)

	var result service.RegisterResult
	if err := call(http.MethodPost, "/society/register", req, &result); err != nil {
		return err
	}
	if err := saveToken(result.Token); err != nil {
		return err
	}
	fmt.Printf("✓ Society %s registered with %d flats\n", result.SocietyCode, result.TotalFlats)
	return nil
}

func login(kind string, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	req := handler.LoginRequest{}
	fs.StringVar(&req.Email, "email", "", "login email")
	fs.StringVar(&req.Password, "password", "", "password or initial password")
	fs.Parse(args)

	if req.Email == "" || req.Password == "" {
		fs.PrintDefaults()
		return errors.New("email and password are required")
	}

	var result service.LoginResult
	if err := call(http.MethodPost, "/"+kind+"/login", req, &result); err != nil {
		return err
	}
	if err := saveToken(result.Token); err != nil {
		return err
	}
	fmt.Printf("✓ Logged in as %s (%s)\n", result.Email, result.SocietyCode)
	if result.MustChangePassword {
		fmt.Printf("! Initial password in use, run: societyhub %s passwd\n", kind)
	}
	return nil
}

func changePassword(path string, args []string) error {
	fs := flag.NewFlagSet("passwd", flag.ExitOnError)
	req := handler.ChangePasswordRequest{}
	fs.StringVar(&req.OldPassword, "old", "", "current password")
	fs.StringVar(&req.NewPassword, "new", "", "new password (min 8 characters)")
	fs.Parse(args)

	if err := call(http.MethodPut, path, req, nil); err != nil {
		return err
	}
	fmt.Println("✓ Password changed")
	return nil
}

func showProfile(path string) error {
	var profile map[string]any
	if err := call(http.MethodGet, path, nil, &profile); err != nil {
		return err
	}
	out, _ := json.MarshalIndent(profile, "", "  ")
	fmt.Println(string(out))
	return nil
}

func updateProfile(args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	req := handler.UpdateProfileRequest{}
	fs.StringVar(&req.Name, "name", "", "name")
	fs.StringVar(&req.Email, "email", "", "email")
	fs.StringVar(&req.Phone, "phone", "", "phone")
	fs.StringVar(&req.Address, "address", "", "address")
	fs.Parse(args)

	if err := call(http.MethodPut, "/resident/profile", req, nil); err != nil {
		return err
	}
	fmt.Println("✓ Profile updated")
	return nil
}

func listFlats() error {
	var resp handler.FlatsResponse
	if err := call(http.MethodGet, "/society/flats", nil, &resp); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFLAT\tOCCUPANCY\tOWNER\tTENANT")
	for _, f := range resp.Flats {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", f.ID, f.FlatID, f.Occupancy, personName(f.Owner), personName(f.Resident))
	}
	return w.Flush()
}

// saveFlat creates a flat (create) or rewrites an existing one by row id (save)
func saveFlat(args []string, create bool) error {
	fs := flag.NewFlagSet("flat", flag.ExitOnError)
	var (
		rowID  = fs.Int64("id", 0, "flat row id (save only)")
		flatID = fs.String("flat", "", "flat code, e.g. A0101 (create only)")
		occ    = fs.String("occupancy", string(domain.OccupancyVacant), "Vacant, Owner-Occupied or Rented")
		fields handler.OccupancyFields
	)
	fs.StringVar(&fields.OwnerName, "owner-name", "", "owner name")
	fs.StringVar(&fields.OwnerEmail, "owner-email", "", "owner email")
	fs.StringVar(&fields.OwnerPhone, "owner-phone", "", "owner phone")
	fs.StringVar(&fields.OwnerAddress, "owner-address", "", "owner address")
	fs.StringVar(&fields.ResidentName, "tenant-name", "", "tenant name")
	fs.StringVar(&fields.ResidentEmail, "tenant-email", "", "tenant email")
	fs.StringVar(&fields.ResidentPhone, "tenant-phone", "", "tenant phone")
	fs.StringVar(&fields.ResidentAddress, "tenant-address", "", "tenant address")
	fs.Parse(args)
	fields.Occupancy = domain.Occupancy(*occ)

	var (
		result service.OccupancyResult
		err    error
	)
	if create {
		err = call(http.MethodPost, "/society/flats", handler.CreateFlatRequest{FlatID: *flatID, OccupancyFields: fields}, &result)
	} else {
		if *rowID <= 0 {
			return errors.New("-id is required")
		}
		err = call(http.MethodPut, "/society/flats/"+strconv.FormatInt(*rowID, 10), fields, &result)
	}
	if err != nil {
		return err
	}

	fmt.Printf("✓ Flat %s is %s\n", result.Flat.FlatID, result.Flat.Occupancy)
	for _, p := range result.Provisioned {
		fmt.Printf("  %s %s initial password: %s\n", p.Role, p.Email, p.InitialPassword)
	}
	return nil
}

func personName(r *domain.Resident) string {
	if r == nil {
		return "-"
	}
	return r.Name
}

// call sends body as JSON and decodes a 2xx answer into out
func call(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, getAPIURL()+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := loadToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr handler.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Message == "" {
			return fmt.Errorf("request failed: %s", resp.Status)
		}
		return fmt.Errorf("%s: %s", apiErr.Error, apiErr.Message)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func getAPIURL() string {
	if url := os.Getenv("SOCIETYHUB_API"); url != "" {
		return strings.TrimRight(url, "/")
	}
	return "http://localhost:8080"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".societyhub", "token")
}

func saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(tokenFile()), 0o700); err != nil {
		return err
	}
	return os.WriteFile(tokenFile(), []byte(token), 0o600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return strings.TrimSpace(string(data))
}

func printUsage() {
	fmt.Print(`SocietyHub CLI

Usage:
  societyhub <command> [options]

Commands:
  society   Society account (register, login, profile, passwd)
  resident  Resident account (login, profile, update, passwd)
  flats     Flat management (list, create, save) - society login required
  logout    Forget the stored session token
  help      Show this help message

Environment Variables:
  SOCIETYHUB_API    API endpoint (default: http://localhost:8080)

Examples:
  societyhub society register -code SOC1 -name "Green Park" -email admin@greenpark.in -password secret123 -wings 2 -floors 5 -rooms 4
  societyhub flats list
  societyhub flats save -id 3 -occupancy Owner-Occupied -owner-name Asha -owner-email asha@example.com -owner-phone 9876543210
  societyhub resident login -email asha@example.com -password 'Xy7!...'
`)
}
