package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rcliao/smartlife/internal/recipe"
)

func init() {
	recipeCmd := &cobra.Command{
		Use:   "recipe",
		Short: "Browse healthy recipes",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recipes",
		Long:  "List recipes, optionally for one meal category (Breakfast, Lunch, Dinner or Snacks) or only the popular ones.",
		Run:   runRecipeList,
	}
	listCmd.Flags().String("category", "", "Meal category")
	listCmd.Flags().Bool("popular", false, "Only popular recipes")

	showCmd := &cobra.Command{
		Use:   "show [name]",
		Short: "Show ingredients, nutrition and steps for a recipe",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRecipeShow,
	}

	recipeCmd.AddCommand(listCmd, showCmd)
	RootCmd.AddCommand(recipeCmd)
}

func loadRecipes() *recipe.Book {
	b, err := recipe.Load(cfg.Data.Recipes)
	if err != nil {
		exitErr("recipes", err)
	}
	return b
}

func runRecipeList(cmd *cobra.Command, args []string) {
	category, _ := cmd.Flags().GetString("category")
	popular, _ := cmd.Flags().GetBool("popular")

	b := loadRecipes()
	var recipes []recipe.Recipe
	switch {
	case category != "":
		recipes = b.ByCategory(category)
		if len(recipes) == 0 {
			fmt.Fprintf(os.Stderr, "No recipes for %q. Categories: %s\n", category, strings.Join(recipe.Categories(), ", "))
		}
	case popular:
		recipes = b.Popular()
	default:
		recipes = b.All()
	}

	if textOutput() {
		writeRecipeTable(os.Stdout, recipes)
		return
	}
	printJSON(recipes)
}

func runRecipeShow(cmd *cobra.Command, args []string) {
	r, err := loadRecipes().Find(strings.Join(args, " "))
	if err != nil {
		exitErr("recipe", err)
	}

	if textOutput() {
		writeRecipe(os.Stdout, r)
		return
	}
	printJSON(r)
}

func writeRecipeTable(w io.Writer, recipes []recipe.Recipe) {
	if len(recipes) == 0 {
		fmt.Fprintln(w, "No recipes.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCATEGORY\tKCAL")
	for _, r := range recipes {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", r.Name, r.Category, r.Calories)
	}
	tw.Flush()
}

func writeRecipe(w io.Writer, r recipe.Recipe) {
	fmt.Fprintf(w, "%s (%s)\n\n", r.Name, r.Category)
	fmt.Fprintf(w, "Nutrition: calories %d, vitamin %d, protein %d\n\n", r.Nutrition.Calories, r.Nutrition.Vitamin, r.Nutrition.Protein)
	fmt.Fprintln(w, "Ingredients:")
	for _, in := range r.Ingredients {
		fmt.Fprintf(w, "  - %s\n", in)
	}
	fmt.Fprintln(w, "\nSteps:")
	for i, step := range r.Steps {
		fmt.Fprintf(w, "  %d. %s\n", i+1, step)
	}
}
