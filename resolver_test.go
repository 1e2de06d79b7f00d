package habitat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/centraunit/habitat"
	"github.com/centraunit/habitat/mock"
	"github.com/stretchr/testify/suite"
)

type upperMarker struct{}

func (upperMarker) MarkerType() habitat.MarkerType { return "upper" }

type ResolverTestSuite struct {
	suite.Suite
	locator *habitat.ServiceLocator
	ctx     context.Context
}

func (s *ResolverTestSuite) SetupTest() {
	s.locator = habitat.NewServiceLocator()
	s.ctx = context.Background()

	_, err := s.locator.Register(habitat.Link(englishImpl).To(greeterContract).Named("english").QualifiedBy("polite").ProvidedBy(mock.EnglishCreator).Build())
	s.Require().NoError(err)
	_, err = s.locator.Register(habitat.Link(frenchImpl).To(greeterContract).Named("french").OfRank(5).ProvidedBy(mock.FrenchCreator).Build())
	s.Require().NoError(err)
}

func (s *ResolverTestSuite) TestDefaultResolutionPrefersRank() {
	v, err := s.locator.Resolve(s.ctx, habitat.InjectionPoint{Kind: habitat.ElementField, Element: "Greeter", Contract: greeterContract})
	s.Require().NoError(err)
	s.Equal("Bonjour, Ana", v.(mock.Greeter).Greet("Ana"))
}

func (s *ResolverTestSuite) TestDefaultResolutionByNameAndQualifier() {
	v, err := s.locator.Resolve(s.ctx, habitat.InjectionPoint{Contract: greeterContract, Name: "english"})
	s.Require().NoError(err)
	s.IsType(mock.EnglishGreeter{}, v)

	v, err = s.locator.Resolve(s.ctx, habitat.InjectionPoint{Contract: greeterContract, Qualifiers: []string{"polite"}})
	s.Require().NoError(err)
	s.IsType(mock.EnglishGreeter{}, v)

	_, err = s.locator.Resolve(s.ctx, habitat.InjectionPoint{Contract: greeterContract, Name: "french", Qualifiers: []string{"polite"}})
	var unsatisfied *habitat.UnsatisfiedDependencyError
	s.True(errors.As(err, &unsatisfied))
}

func (s *ResolverTestSuite) TestOptionalMiss() {
	v, err := s.locator.Resolve(s.ctx, habitat.InjectionPoint{Contract: "example.Missing", Optional: true})
	s.NoError(err)
	s.Nil(v)

	_, err = s.locator.Resolve(s.ctx, habitat.InjectionPoint{Contract: "example.Missing"})
	var unsatisfied *habitat.UnsatisfiedDependencyError
	s.True(errors.As(err, &unsatisfied))
	s.Contains(unsatisfied.Error(), "example.Missing")
}

func (s *ResolverTestSuite) TestCustomMarkerOverridesDefault() {
	chain := s.locator.Resolvers()
	system := chain.System()
	chain.Register("upper", habitat.InjectionResolverFunc(func(p habitat.InjectionPoint, c *habitat.CreationContext) (any, error) {
		p.Marker = nil
		v, err := system.Resolve(p, c)
		if err != nil {
			return nil, err
		}
		return "UPPER:" + v.(mock.Greeter).Greet("x"), nil
	}))

	point := habitat.InjectionPoint{Contract: greeterContract, Name: "english", Marker: upperMarker{}}
	v, err := s.locator.Resolve(s.ctx, point)
	s.Require().NoError(err)
	s.Equal("UPPER:Hello, x", v)

	point.Marker = nil
	v, err = s.locator.Resolve(s.ctx, point)
	s.Require().NoError(err)
	s.IsType(mock.EnglishGreeter{}, v)
}

func (s *ResolverTestSuite) TestUnregisteredMarkerFallsBackToSystem() {
	v, err := s.locator.Resolve(s.ctx, habitat.InjectionPoint{Contract: greeterContract, Name: "french", Marker: upperMarker{}})
	s.Require().NoError(err)
	s.IsType(mock.FrenchGreeter{}, v)
}

func (s *ResolverTestSuite) TestGenericGet() {
	g, err := habitat.Get[mock.Greeter](s.ctx, s.locator, "english")
	s.Require().NoError(err)
	s.Equal("Hello, Bo", g.Greet("Bo"))

	_, err = s.locator.Register(habitat.Link("example.NotAGreeter").To(greeterContract).Named("broken").ProvidedBy(habitat.Constant(42)).Build())
	s.Require().NoError(err)
	_, err = habitat.Get[mock.Greeter](s.ctx, s.locator, "broken")
	var mismatch *habitat.TypeMismatchError
	s.True(errors.As(err, &mismatch))
	s.Equal("int", mismatch.Got)
}

func (s *ResolverTestSuite) TestDeclaredInjectionPoints() {
	type Greeting struct {
		Greeter mock.Greeter
	}
	greetingImpl := habitat.TypeKey("example.Greeting")
	_, err := s.locator.Register(habitat.Link(greetingImpl).
		Injects(habitat.InjectionPoint{Kind: habitat.ElementConstructorParameter, Element: "NewGreeting", Contract: greeterContract, Name: "english"}).
		ProvidedBy(func(c *habitat.CreationContext) (any, error) {
			args, err := c.ResolveDeclared()
			if err != nil {
				return nil, err
			}
			return &Greeting{Greeter: args[0].(mock.Greeter)}, nil
		}).Build())
	s.Require().NoError(err)

	v, err := s.locator.LookupByContract(greetingImpl).Get(s.ctx)
	s.Require().NoError(err)
	s.IsType(mock.EnglishGreeter{}, v.(*Greeting).Greeter)
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverTestSuite))
}
