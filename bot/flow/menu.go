package flow

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/chative-party-booking/bot/catalog"
	"github.com/tanpawarit/chative-party-booking/bot/contract"
	"github.com/tanpawarit/chative-party-booking/bot/state"
)

func (m *Machine) onMainMenu(_ context.Context, s *state.Session, in input) (contract.Response, error) {
	switch {
	case in.is(backWords):
		return m.mainMenu(""), nil
	case in.lower == "1":
		s.Enter(state.BrowseCategories)
		s.Browse = &state.Browse{}
		return m.categoriesMenu("You chose *Single toys*! 🧸"), nil
	case in.lower == "2":
		s.Enter(state.ChooseCombo)
		return m.comboMenu("You chose the *Magic Combos*! 🎁"), nil
	case in.lower == "3":
		s.Enter(state.ManageTaxID)
		s.Manage = &state.Manage{}
		return contract.Response{Body: "OK, let's manage your booking. ✏️\n\n" +
			"Please send the *CPF* (numbers only) used when booking."}, nil
	default:
		return m.mainMenu(invalidChoice), nil
	}
}

func (m *Machine) onBrowseCategories(_ context.Context, s *state.Session, in input) (contract.Response, error) {
	if in.is(backWords) {
		s.Enter(state.MainMenu)
		return m.mainMenu(""), nil
	}

	cats := m.catalog.Categories()
	n, err := strconv.Atoi(in.lower)
	switch {
	case err == nil && n == 1:
		s.Enter(state.BrowseItems)
		s.Browse = &state.Browse{}
		return m.fullCatalog(), nil
	case err == nil && n >= 2 && n <= len(cats)+1:
		cat := cats[n-2]
		s.Enter(state.BrowseItems)
		s.Browse = &state.Browse{Category: cat.Name}
		return categoryItems(cat), nil
	default:
		return m.categoriesMenu(invalidChoice), nil
	}
}

func (m *Machine) fullCatalog() contract.Response {
	var b strings.Builder
	b.WriteString("Here is our full catalog, by category! ✨\n\nSend a number to see the details:\n")
	for _, cat := range m.catalog.Categories() {
		fmt.Fprintf(&b, "\n*%s*\n", cat.Name)
		for _, p := range sortedProducts(cat) {
			fmt.Fprintf(&b, "*%d* - %s\n", p.ID, p.Name)
		}
	}
	b.WriteString("\nSend the toy *number* or *back*.")
	return contract.Response{Body: b.String()}
}

func categoryItems(cat catalog.Category) contract.Response {
	products := sortedProducts(cat)
	opts := make([]contract.MenuOption, 0, len(products)+1)
	for _, p := range products {
		opts = append(opts, contract.MenuOption{ID: strconv.Itoa(p.ID), Label: fmt.Sprintf("%s (ID: %d)", p.Name, p.ID)})
	}
	opts = append(opts, contract.MenuOption{ID: "back", Label: "🔙 Back (categories)"})
	return contract.Response{
		Body:        fmt.Sprintf("These are our *%s* items! ✨\n\nPick one to see the details:", cat.Name),
		MenuOptions: opts,
	}
}

func sortedProducts(cat catalog.Category) []catalog.Product {
	out := append([]catalog.Product(nil), cat.Products...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Machine) onBrowseItems(_ context.Context, s *state.Session, in input) (contract.Response, error) {
	if in.is(backWords) {
		s.Enter(state.BrowseCategories)
		s.Browse = &state.Browse{}
		return m.categoriesMenu("Back to the categories... 🧸"), nil
	}

	id, err := strconv.Atoi(in.lower)
	if err != nil {
		return contract.Response{Body: "Invalid option 😕. Send a *number* from the list or *back*."}, nil
	}
	p, ok := m.catalog.Product(id)
	if !ok {
		return contract.Response{Body: "Invalid option 😕. Send a *number* from the list or *back*."}, nil
	}
	return contract.Response{
		Body: fmt.Sprintf("✨ *%s* (ID: %d) ✨\n\nPrice: *%s*\n\n%s\n\nWhat would you like to do?",
			p.Name, p.ID, p.DisplayPrice(), p.Description),
		MediaURLs:  p.Images,
		UseCaption: true,
		MenuOptions: []contract.MenuOption{
			{ID: fmt.Sprintf("add %d", p.ID), Label: "🛒 Add to cart"},
			{ID: "back", Label: "🔙 Back (see others)"},
		},
	}, nil
}

func (m *Machine) onChooseCombo(_ context.Context, s *state.Session, in input) (contract.Response, error) {
	if in.is(backWords) {
		s.Enter(state.MainMenu)
		return m.mainMenu(""), nil
	}
	combo, ok := m.catalog.Combo(in.lower)
	if !ok || len(combo.Stages) == 0 {
		return m.comboMenu("Invalid option 😕. Please pick a number from the list:"), nil
	}

	s.Enter(state.BuildCombo)
	choices := make([]catalog.StageChoice, len(combo.Stages))
	for i, st := range combo.Stages {
		choices[i] = catalog.StageChoice{Stage: st.Name}
	}
	s.Combo = &state.Combo{Key: combo.Key, Choices: choices}
	return m.stageIntro(combo, 0, ""), nil
}

func (m *Machine) onBuildCombo(_ context.Context, s *state.Session, in input) (contract.Response, error) {
	if in.is(backWords) {
		s.Enter(state.MainMenu)
		return m.mainMenu("Combo building canceled."), nil
	}

	building := s.Combo
	combo, ok := m.catalog.Combo(building.Key)
	if !ok || building.Stage >= len(combo.Stages) || len(building.Choices) != len(combo.Stages) {
		s.Enter(state.MainMenu)
		return m.mainMenu("Something went wrong while building the combo, let's start over."), nil
	}

	stage := combo.Stages[building.Stage]
	options := m.catalog.StageOptions(stage)
	chosen := &building.Choices[building.Stage]

	added, failed := pickStageItems(chosen, options, stage.Limit, strings.Fields(in.raw))

	var feedback []string
	if len(added) > 0 {
		feedback = append(feedback, "Nice! Added: "+quoteAll(added)+".")
	}
	if len(failed) > 0 {
		feedback = append(feedback, "Could not add: "+strings.Join(failed, ", ")+".")
	}

	if len(chosen.Items) < stage.Limit {
		feedback = append(feedback, fmt.Sprintf("You have chosen %d of %d for (%s).\nPlease send the number of the next item.",
			len(chosen.Items), stage.Limit, stage.Name))
		return contract.Response{Body: strings.Join(feedback, "\n"), QuickReplies: []string{"back"}}, nil
	}

	feedback = append(feedback, fmt.Sprintf("You completed the *%s* step!", stage.Name))
	building.Stage++
	if building.Stage < len(combo.Stages) {
		return m.stageIntro(combo, building.Stage, strings.Join(feedback, "\n")), nil
	}

	item := catalog.ComboItem(combo, building.Choices)
	s.Cart = replaceItem(s.Cart, item)
	s.Enter(state.MainMenu)
	return m.cartView(s, fmt.Sprintf("🎉 Woohoo! *%s* was built and added to your cart!", item.Name)), nil
}

// pickStageItems applies as many index tokens as fit under the limit and
// reports the rest.
func pickStageItems(chosen *catalog.StageChoice, options []string, limit int, tokens []string) (added, failed []string) {
	for _, tok := range tokens {
		if len(chosen.Items) >= limit {
			failed = append(failed, fmt.Sprintf("No. %s (step limit reached)", tok))
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			failed = append(failed, fmt.Sprintf("'%s' (not a number)", tok))
			continue
		}
		if n < 1 || n > len(options) {
			failed = append(failed, fmt.Sprintf("No. %s (invalid)", tok))
			continue
		}
		name := options[n-1]
		if contains(chosen.Items, name) {
			failed = append(failed, fmt.Sprintf("%s (already chosen)", name))
			continue
		}
		chosen.Items = append(chosen.Items, name)
		added = append(added, name)
	}
	return added, failed
}

func contains(items []string, v string) bool {
	for _, it := range items {
		if it == v {
			return true
		}
	}
	return false
}

func quoteAll(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = "'" + n + "'"
	}
	return strings.Join(out, ", ")
}

// replaceItem swaps any cart item with the same id for item, appending it last.
func replaceItem(cart []catalog.CartItem, item catalog.CartItem) []catalog.CartItem {
	out := make([]catalog.CartItem, 0, len(cart)+1)
	for _, c := range cart {
		if c.ID != item.ID {
			out = append(out, c)
		}
	}
	return append(out, item)
}

func (m *Machine) addToCart(s *state.Session, args string) contract.Response {
	if args == "" {
		return contract.Response{Body: "Invalid command. To add, use `add <ID1> <ID2>...`."}
	}

	var added, problems []string
	for _, tok := range strings.Fields(args) {
		id, err := strconv.Atoi(tok)
		if err != nil {
			problems = append(problems, fmt.Sprintf("'%s' is not a valid ID.", tok))
			continue
		}
		p, ok := m.catalog.Product(id)
		if !ok {
			problems = append(problems, fmt.Sprintf("Item with ID *%d* not found.", id))
			continue
		}
		if inCart(s.Cart, id) {
			problems = append(problems, fmt.Sprintf("*%s* (ID: %d) is already in the cart.", p.Name, id))
			continue
		}
		s.Cart = append(s.Cart, catalog.SingleItem(p))
		added = append(added, fmt.Sprintf("*%s* (ID: %d)", p.Name, id))
	}

	var prefix []string
	if len(added) > 0 {
		prefix = append(prefix, "✅ Items added:\n"+strings.Join(added, "\n"))
		prefix = append(prefix, m.cartChanged(s))
	}
	if len(problems) > 0 {
		prefix = append(prefix, "⚠️ Attention:\n"+strings.Join(problems, "\n"))
	}
	return m.cartView(s, join(prefix...))
}

func (m *Machine) removeFromCart(s *state.Session, args string) contract.Response {
	id, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		return contract.Response{Body: "Invalid command. To remove, use `remove <ID>` (e.g. `remove 25`)."}
	}
	for i, item := range s.Cart {
		if item.ID == id {
			s.Cart = append(s.Cart[:i:i], s.Cart[i+1:]...)
			return m.cartView(s, join(fmt.Sprintf("*%s* was removed from your cart.", item.Name), m.cartChanged(s)))
		}
	}
	return m.cartView(s, "This item is not in your cart. 🤔")
}

// cartChanged invalidates an in-progress checkout, since the freight quote
// depends on the cart.
func (m *Machine) cartChanged(s *state.Session) string {
	if !s.State.InCheckout() {
		return ""
	}
	s.Freight = nil
	s.Enter(state.MainMenu)
	return "Your cart changed during checkout, so the delivery quote was cleared. Send *finalize* when you are ready to check out again."
}

func inCart(cart []catalog.CartItem, id int) bool {
	for _, item := range cart {
		if item.ID == id {
			return true
		}
	}
	return false
}

func (m *Machine) startCheckout(s *state.Session) contract.Response {
	if len(s.Cart) == 0 {
		return contract.Response{
			Body:         "Your cart is empty! Add at least one item before checking out.",
			QuickReplies: []string{"back"},
		}
	}
	s.Freight = nil
	s.Enter(state.CollectPostalCode)
	s.Checkout = &state.Checkout{}
	return contract.Response{Body: "Let's finish your order! 🎉\n\n" +
		"For an accurate delivery quote, please send the *postal code (CEP)* of the party venue."}
}

func (m *Machine) triggerReport(ctx context.Context, s *state.Session) contract.Response {
	if m.reports == nil {
		return contract.Response{Body: "The report service is not configured. 😕"}
	}
	if err := m.reports.TriggerReport(ctx, contract.ReportJob{RequestedBy: s.UserID}); err != nil {
		log.Error().Err(err).Str("user_id", s.UserID).Msg("Failed to trigger report")
		return contract.Response{Body: "I could not start the financial report right now. 😕 Please try again later."}
	}
	return contract.Response{Body: "OK! 👍\n\nI'm generating the updated financial report. It may take a few seconds..."}
}
