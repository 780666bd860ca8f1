package catalog

import (
	"sort"
	"strings"
)

var comboGroups = map[Group][]string{
	GroupLargeToys: {
		"Pula Pula P", "Arara de Fantasia", "Balanço", "Pesca", "Sorveteria",
		"Playground Urso", "Feirinha e Carrinho", "Penteadeira", "Cozinha",
		"Casa da Barbie", "Kart Elétrico", "Lambreta Elétrica", "Circuito Espumado",
		"Piscina de Bolinhas", "Escorregador", "Mesa Lego", "Game Airhockey", "Pebolim",
		"Andador Unicórnio", "Cabana Creme", "Tenda Creme", "Cabana Rosa",
	},
	GroupBaby: {
		"Cadeira 3 em 1 (Moisés/Berço)", "Cadeira Moises Musical", "Cadeira de Balanço Automática",
		"Cadeira de Descanso Mamaroo", "Berço Chiqueirinho", "Cadeirinha Pula-Pula",
		"Tapete de Atividades", "Cadeira de Balanço Fisher Price", "Cercado para Bebês",
		"Mesa de Atividades Baby", "Centro de Atividades Baby", "Assento Dino",
	},
	GroupMediumToys: {
		"Balanço Montessori", "Carrinho de Boneca", "Biblioteca", "Balanço Elefante",
		"Balanço Cavalinho", "Piano e Violão", "Triciclo Patinete Zoo", "Andador Dino",
		"Pista de Carrinho", "Amarelinha", "Motoneta", "Bicicleta sem Pedal",
		"Avião Velocipede", "Mesa Multi Games",
	},
	GroupSmallToys: {
		"Arco Íris de Madeira", "Bonecos Super Heróis", "Castelo Batman",
		"Jogo de Argola Girafa", "Andador Zebrinha", "Instrumentos Musicais",
		"Pista Hot Wheels Dino", "Pista Hot Wheels Dragão", "Centro de Atividades",
		"Bloco Cidade", "Jogos Diversos", "Brinquedo Playhouse Fisher Price",
	},
}

func comboStages(large, medium, small int) []Stage {
	return []Stage{
		{Name: "Large toys / Baby kit", Groups: []Group{GroupLargeToys, GroupBaby}, Limit: large},
		{Name: "Medium toys", Groups: []Group{GroupMediumToys}, Limit: medium},
		{Name: "Small toys", Groups: []Group{GroupSmallToys}, Limit: small},
	}
}

var defaultCombos = []Combo{
	{Key: "1", ID: 101, Name: "Combo 1 (custom)", Price: 1400, Stages: comboStages(4, 3, 4)},
	{Key: "2", ID: 102, Name: "Combo 2 (custom)", Price: 1740, Stages: comboStages(6, 4, 4)},
	{Key: "3", ID: 103, Name: "Combo 3 (custom)", Price: 2250, Stages: comboStages(9, 4, 4)},
}

type productSeed struct {
	id          int
	name        string
	price       float64
	label       string
	description string
	image       string
}

type categorySeed struct {
	name     string
	products []productSeed
}

var defaultCategories = []categorySeed{
	{name: "Inflatables", products: []productSeed{
		{24, "Castelinho 3 em 1", 1000, "", "Bounce house, ball pit and slide in a single playground.", "Castelinho3em1.png"},
		{25, "Castelinho 2 em 1", 600, "", "Bounce house with a slide.", "Castelinho2em1.png"},
		{26, "Castelo Inflável Princess", 500, "", "Princess castle with bounce floor and slide, great for photos.", "CasteloInflavelPrincess.png"},
		{27, "Bubble House", 1100, "", "Transparent bubble that can be filled with balloons.", "BubbleHouse.png"},
	}},
	{name: "Trampolines and ball pits", products: []productSeed{
		{6, "Cama Elástica", 450, "", "Safe, sturdy trampoline for all ages.", "CamaElastica.png"},
		{37, "Piscina de Bolinhas Coração", 400, "", "Heart-shaped ball pit for the little ones.", "PiscinaBolinhaCoracao.png"},
	}},
	{name: "Playhouses and tents", products: []productSeed{
		{8, "Casinha Encantada", 390, "", "Delicate playhouse for make-believe games.", "CasinhaEncantada.png"},
		{19, "Tenda Arco-Íris", 450, "", "Colorful cozy tent.", "TendaArcoIris.png"},
		{20, "Tenda Encantada", 950, "", "Sleepover tents for a pajama party.", "TendaEncantada.png"},
		{21, "Tenda Foguete", 380, "", "Rocket-shaped tent for space adventures.", "TendaFoguete.png"},
	}},
	{name: "Electronics and ride-ons", products: []productSeed{
		{10, "Fliperama Portátil", 350, "", "Portable arcade with thousands of retro games.", "FliperamaPortatil.png"},
		{13, "Máquina De Ursos", 800, "from R$ 800,00", "Claw machine, plush toys included. Final price on request.", "MaquinaDeUrsos.png"},
		{16, "Mesa Interativa", 650, "", "Table with educational games.", "MesaInterativa.png"},
		{28, "Pelúcia Motorizada", 500, "R$ 500,00 each", "Ride-on plush animals, easy to drive.", "PeluciaMotorizada.png"},
		{29, "Triciclo Elétrico Drift LED", 250, "", "Electric drift trike with LED lights.", "Triciclo.png"},
		{30, "Kart Elétrico", 250, "", "Safe electric kart for young drivers.", "KartEletrico.png"},
		{31, "Pista Carrinho Bate Bate", 1100, "", "Bumper car track.", "PistaCarrinhoBateBate.png"},
		{32, "Fliperama Kids", 300, "", "Kid-sized arcade with easy controls.", "FliperamaKids.png"},
	}},
	{name: "Food and party effects", products: []productSeed{
		{5, "Caixa De Som Amplificada", 350, "", "Professional speaker with microphone.", "CaixaDeSomAmplificada.png"},
		{7, "Candy Wall", 1100, "", "Interactive candy wall panel.", "CandyWall.png"},
		{12, "Máquina De Fumaça", 250, "", "Fog machine for the dance floor.", "MaquinaDeFumaca.png"},
		{14, "Máquina Para Bolhas", 130, "", "Soap bubble machine.", "MaquinaParaBolhas.png"},
		{18, "Moving Head Spot LED", 150, "", "Professional moving light effects.", "MovingHeadSpotLED.png"},
		{39, "Carrinho de Algodão Doce e Pipoca", 500, "", "Retro cart serving cotton candy and popcorn.", "CarrinhoAlgodaoDoce.png"},
	}},
	{name: "Furniture and activities", products: []productSeed{
		{9, "Cubo De Cristal", 250, "", "Crystal cube for cake tables and displays.", "CuboDeCristal.png"},
		{15, "Mesa Criativa", 450, "", "Art and modelling-clay workshop table.", "MesaCriativa.png"},
		{17, "Mesa Piquenique", 300, "from R$ 300,00", "Picnic corner for garden-themed parties.", "MesaPpiiccnnicc.png"},
		{33, "Painel Interativo", 490, "", "Sensory activity panel for babies.", "PainelInterativo.png"},
		{38, "Circuito Ursinho", 650, "", "Teddy bear obstacle course with tunnels and ramps.", "CirculoUrsinho.png"},
	}},
	{name: "Pretend-play sets", products: []productSeed{
		{34, "Mobile Pet Shop", 300, "", "Pet shop set with tub, accessories and register.", "MobilePetShoop.png"},
		{35, "Mobile Oficina", 300, "", "Workshop set with toy tools and bench.", "MobileOficina.png"},
		{36, "Mobile Camarim", 300, "", "Dressing room with mirror, costumes and accessories.", "MobileCamarim.png"},
	}},
	{name: "Playful toys", products: []productSeed{
		{4, "Barco Candy", 300, "", "Pastel boat swing and photo set.", "BarcoCandy.png"},
		{11, "Gangorra Candy", 250, "", "Pastel seesaw.", "GangorraCandy.png"},
	}},
}

// Static is the built-in catalog with image URLs rooted at a media base URL.
type Static struct {
	baseURL    string
	categories []Category
	byID       map[int]Product
	combos     []Combo
}

func NewStatic(mediaBaseURL string) *Static {
	s := &Static{
		baseURL: strings.TrimRight(strings.TrimSpace(mediaBaseURL), "/"),
		byID:    make(map[int]Product),
		combos:  append([]Combo(nil), defaultCombos...),
	}

	for _, seed := range defaultCategories {
		cat := Category{Name: seed.name}
		for _, ps := range seed.products {
			p := Product{
				ID:          ps.id,
				Name:        ps.name,
				Category:    seed.name,
				Price:       ps.price,
				PriceLabel:  ps.label,
				Description: ps.description,
				Images:      s.nonEmpty(s.image("Avulsos/" + ps.image)),
			}
			cat.Products = append(cat.Products, p)
			s.byID[p.ID] = p
		}
		s.categories = append(s.categories, cat)
	}
	sort.Slice(s.combos, func(i, j int) bool { return s.combos[i].Key < s.combos[j].Key })
	return s
}

func (s *Static) image(name string) string {
	if s.baseURL == "" {
		return ""
	}
	return s.baseURL + "/image/" + name
}

func (s *Static) Categories() []Category {
	return s.categories
}

func (s *Static) Product(id int) (Product, bool) {
	p, ok := s.byID[id]
	return p, ok
}

func (s *Static) Combos() []Combo {
	return s.combos
}

func (s *Static) Combo(key string) (Combo, bool) {
	key = strings.TrimSpace(key)
	for _, c := range s.combos {
		if c.Key == key {
			return c, true
		}
	}
	return Combo{}, false
}

// StageOptions concatenates the stage's groups in order; indices shown to the
// user count across the concatenated list.
func (s *Static) StageOptions(stage Stage) []string {
	var out []string
	for _, g := range stage.Groups {
		out = append(out, comboGroups[g]...)
	}
	return out
}

func (s *Static) WelcomeImages() []string {
	return s.nonEmpty(s.image("Principal.png"))
}

// MenuImages illustrates the combo menu.
func (s *Static) MenuImages() []string {
	return s.nonEmpty(s.image("Combos.png"))
}

func (s *Static) ComboImages() []string {
	return s.nonEmpty(
		s.image("Brinquedos_G.png"),
		s.image("Brinquedos_M.png"),
		s.image("Brinquedos_P.png"),
		s.image("Kit_Baby.png"),
	)
}

func (s *Static) nonEmpty(urls ...string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}
