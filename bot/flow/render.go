package flow

import (
	"fmt"
	"strings"

	"github.com/tanpawarit/chative-party-booking/bot/catalog"
	"github.com/tanpawarit/chative-party-booking/bot/contract"
	"github.com/tanpawarit/chative-party-booking/bot/state"
)

const (
	dayLayout     = "02/01/2006"
	shortDay      = "02/01"
	cartHeader    = "🛒 *Your Cart*"
	invalidChoice = "Invalid option 😕. Please choose one of the options."
)

var backOption = contract.MenuOption{ID: "back", Label: "🔙 Back"}

func join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}

func (m *Machine) mainMenu(prefix string) contract.Response {
	return contract.Response{
		Body: join(prefix,
			"Hello! ✨ Welcome to the magical world of party rentals!\n\n"+
				"How would you like to start today?\n\n"+
				"At any time you can send *view cart* to see your order."),
		MediaURLs:  m.catalog.WelcomeImages(),
		UseCaption: true,
		MenuOptions: []contract.MenuOption{
			{ID: "1", Label: "1️⃣ Explore toys 🧸"},
			{ID: "2", Label: "2️⃣ Build a combo 🎁"},
			{ID: "3", Label: "3️⃣ Manage my booking ✏️"},
		},
	}
}

func (m *Machine) cartView(s *state.Session, prefix string) contract.Response {
	var b strings.Builder
	b.WriteString(cartHeader + "\n\n")
	if len(s.Cart) == 0 {
		b.WriteString("Your cart is empty.")
		return contract.Response{Body: join(prefix, b.String()), QuickReplies: []string{"back"}}
	}

	for _, item := range s.Cart {
		fmt.Fprintf(&b, "*%d* - %s (%s)\n", item.ID, item.Name, catalog.FormatBRL(item.Price))
		for _, choice := range item.Choices {
			if len(choice.Items) > 0 {
				fmt.Fprintf(&b, "   └ _%s:_ %s\n", choice.Stage, strings.Join(choice.Items, ", "))
			}
		}
	}
	itemsTotal, _ := catalog.Totals(s.Cart)
	fmt.Fprintf(&b, "\n*Items total:* %s\n", catalog.FormatBRL(itemsTotal))
	if s.Freight != nil {
		if s.Freight.Fee == 0 {
			b.WriteString("🚚 *Delivery:* Free\n")
		} else {
			fmt.Fprintf(&b, "🚚 *Delivery:* %s\n", catalog.FormatBRL(s.Freight.Fee))
		}
		fmt.Fprintf(&b, "--------------------\nTOTAL: *%s*\n", catalog.FormatBRL(itemsTotal+s.Freight.Fee))
	}
	b.WriteString("\nTo remove an item, send `remove <ID>`.")

	return contract.Response{
		Body:         join(prefix, b.String()),
		QuickReplies: []string{"finalize", "back"},
	}
}

func (m *Machine) categoriesMenu(prefix string) contract.Response {
	opts := []contract.MenuOption{{ID: "1", Label: "1️⃣ Full catalog"}}
	for i, cat := range m.catalog.Categories() {
		opts = append(opts, contract.MenuOption{ID: fmt.Sprint(i + 2), Label: fmt.Sprintf("%d️⃣ %s", i+2, cat.Name)})
	}
	opts = append(opts, backOption)
	return contract.Response{
		Body: join(prefix,
			"To add an item straight by ID, send `add <number>` (e.g. `add 24`).\n\n"+
				"Or pick a category to explore:"),
		MenuOptions: opts,
	}
}

func (m *Machine) comboMenu(prefix string) contract.Response {
	combos := m.catalog.Combos()
	opts := make([]contract.MenuOption, 0, len(combos))
	for _, c := range combos {
		opts = append(opts, contract.MenuOption{
			ID:    c.Key,
			Label: fmt.Sprintf("%s (%s)", c.Name, catalog.FormatBRL(c.Price)),
		})
	}
	return contract.Response{
		Body:         join(prefix, "Based on the picture, which combo would you like to *build*?"),
		MediaURLs:    m.catalog.MenuImages(),
		UseCaption:   true,
		MenuOptions:  opts,
		QuickReplies: []string{"back"},
	}
}

func (m *Machine) stageIntro(combo catalog.Combo, stage int, prefix string) contract.Response {
	st := combo.Stages[stage]
	options := m.catalog.StageOptions(st)

	var b strings.Builder
	fmt.Fprintf(&b, "Let's build your *%s*!\n\n", combo.Name)
	fmt.Fprintf(&b, "--- STEP %d of %d ---\n*%s*\n\n", stage+1, len(combo.Stages), st.Name)
	fmt.Fprintf(&b, "Choose *%d items* from this list:\n", st.Limit)
	for i, name := range options {
		fmt.Fprintf(&b, "*%d* - %s\n", i+1, name)
	}
	b.WriteString("\nSend *only the numbers* of the items you want (e.g. `1 5 10`).")

	resp := contract.Response{Body: join(prefix, b.String()), QuickReplies: []string{"back"}}
	if stage == 0 {
		resp.MediaURLs = m.catalog.ComboImages()
	}
	return resp
}

func (m *Machine) monthsMenu(months []state.YearMonth, prefix string) contract.Response {
	opts := make([]contract.MenuOption, 0, len(months)+1)
	for i, ym := range months {
		opts = append(opts, contract.MenuOption{ID: fmt.Sprint(i + 1), Label: fmt.Sprintf("%s %d", ym.Month, ym.Year)})
	}
	opts = append(opts, backOption)
	return contract.Response{
		Body:        join(prefix, "🗓️ *Choose the month*\n\nWhich month would you like to book?"),
		MenuOptions: opts,
	}
}

func daysList(ym state.YearMonth, days []int, prefix string) contract.Response {
	label := fmt.Sprintf("%s %d", ym.Month, ym.Year)
	if len(days) == 0 {
		return contract.Response{
			Body:         join(prefix, fmt.Sprintf("Sorry, there are no days left in *%s*. 😕\n\nPlease choose another month.", label)),
			QuickReplies: []string{"back"},
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🗓️ *Choose the day in %s*\n\nThese are the available days:\n\n", label)
	for i, d := range days {
		if i > 0 {
			if i%5 == 0 {
				b.WriteString("\n")
			} else {
				b.WriteString("   ")
			}
		}
		fmt.Fprintf(&b, "`%02d`", d)
	}
	b.WriteString("\n\nPlease send the *day* you prefer or *back*.")
	return contract.Response{Body: join(prefix, b.String())}
}

func (m *Machine) hourPrompt(day string, prefix string) contract.Response {
	return contract.Response{
		Body: join(prefix, fmt.Sprintf(
			"⏰ *Choose the time for %s*\n\n"+
				"Our prices include up to *4 hours of party*.\n\n"+
				"Toys can *arrive* at any time between *%s and %s*.\n\n"+
				"Please send the time as HH:MM (e.g. `14:00`), or send *back*.",
			displayDay(day, m.loc), m.cfg.OpenAt, m.cfg.CloseAt)),
	}
}

func (m *Machine) invalidHour() contract.Response {
	return contract.Response{Body: fmt.Sprintf(
		"Invalid time 😕.\n\nPlease send a time between *%s and %s* as HH:MM (e.g. `14:30`), or send *back*.",
		m.cfg.OpenAt, m.cfg.CloseAt)}
}

func describeCart(cart []catalog.CartItem) string {
	lines := make([]string, 0, len(cart))
	for _, item := range cart {
		if len(item.Choices) == 0 {
			lines = append(lines, "- "+item.Name)
			continue
		}
		lines = append(lines, "- *"+item.Name+"*")
		for _, choice := range item.Choices {
			if len(choice.Items) > 0 {
				lines = append(lines, fmt.Sprintf("   └ _%s:_ %s", choice.Stage, strings.Join(choice.Items, ", ")))
			}
		}
	}
	return strings.Join(lines, "\n")
}

func yesNo() []string { return []string{"yes", "no"} }
